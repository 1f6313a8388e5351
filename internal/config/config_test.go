package config

import (
	"testing"

	"github.com/luki-ev/synod-bug-report/internal/ratelimit"
	"github.com/luki-ev/synod-bug-report/internal/validation"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BR_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.IsDev())
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.Equal(t, int64(64*1024*1024), cfg.MaxUploadBytes)
	require.Equal(t, []ratelimit.Window{ratelimit.PerHour(1), ratelimit.PerDay(10)}, cfg.RateLimitIP)
	require.Equal(t, []ratelimit.Window{ratelimit.PerHour(10), ratelimit.PerDay(20)}, cfg.RateLimitGlobal)
	require.False(t, cfg.RateLimitFailOpen)
	require.Equal(t, 60, cfg.BurstRPM)
	require.Empty(t, cfg.RedisAddr)
	require.Equal(t, "bugreport:ratelimit:", cfg.RedisPrefix)
	require.Empty(t, cfg.StorageDir)
	require.Equal(t, 2000, cfg.SlackTimeoutMS)
	require.Equal(t, 10000, cfg.SMTPTimeoutMS)
	require.Empty(t, cfg.MailValues)
	require.Equal(t, validation.DefaultLimits().FileAllowedMediaTypes, cfg.Validation.FileAllowedMediaTypes)
}

func TestLoad_RequiresEnv(t *testing.T) {
	t.Setenv("BR_ENV", "")
	_, err := Load()
	require.EqualError(t, err, "BR_ENV is required")

	t.Setenv("BR_ENV", "staging")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BR_ENV", "prod")
	t.Setenv("BR_RATE_LIMIT_IP", "5/minute")
	t.Setenv("BR_RATE_LIMIT_GLOBAL", "100/hour, 1000/day")
	t.Setenv("BR_RATE_LIMIT_FAIL_OPEN", "true")
	t.Setenv("BR_STORAGE_DIR", "/var/lib/bugreport")
	t.Setenv("BR_RETENTION_DAYS", "30")
	t.Setenv("BR_SMTP_ADDR", "smtp.example.org:587")
	t.Setenv("BR_MAIL_FROM", "bugs@example.org")
	t.Setenv("BR_MAIL_TO", "a@example.org, b@example.org")
	t.Setenv("BR_MAIL_VALUES", "device_id, text")
	t.Setenv("BR_SMTP_TIMEOUT_MS", "2500")
	t.Setenv("BR_VALUE_KEYS_REQUIRED", "text,device_id")
	t.Setenv("BR_FILE_ALLOWED_MEDIA_TYPES", "text/*,image/png")
	t.Setenv("BR_FILE_MAX_SIZE", "1024")
	t.Setenv("BR_FILE_MAX_COUNT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	require.False(t, cfg.IsDev())
	require.Equal(t, []ratelimit.Window{ratelimit.PerMinute(5)}, cfg.RateLimitIP)
	require.Equal(t, []ratelimit.Window{ratelimit.PerHour(100), ratelimit.PerDay(1000)}, cfg.RateLimitGlobal)
	require.True(t, cfg.RateLimitFailOpen)
	require.Equal(t, 30, cfg.RetentionDays)
	require.Equal(t, []string{"a@example.org", "b@example.org"}, cfg.MailTo)
	require.Equal(t, []string{"device_id", "text"}, cfg.MailValues)
	require.Equal(t, 2500, cfg.SMTPTimeoutMS)
	require.Equal(t, []string{"text", "device_id"}, cfg.Validation.ValueKeysRequired)
	require.Equal(t, []string{"text/*", "image/png"}, cfg.Validation.FileAllowedMediaTypes)
	require.Equal(t, int64(1024), cfg.Validation.FileMaxSize)
	require.Equal(t, 3, cfg.Validation.FileMaxCount)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"log level", map[string]string{"BR_LOG_LEVEL": "trace"}},
		{"upload bytes", map[string]string{"BR_MAX_UPLOAD_BYTES": "lots"}},
		{"window", map[string]string{"BR_RATE_LIMIT_IP": "1/fortnight"}},
		{"fail open", map[string]string{"BR_RATE_LIMIT_FAIL_OPEN": "maybe"}},
		{"retention without storage", map[string]string{"BR_RETENTION_DAYS": "7"}},
		{"smtp without recipients", map[string]string{"BR_SMTP_ADDR": "smtp:25", "BR_MAIL_FROM": "a@b"}},
		{"slack timeout", map[string]string{"BR_SLACK_TIMEOUT_MS": "0"}},
		{"smtp timeout", map[string]string{"BR_SMTP_TIMEOUT_MS": "-1"}},
		{"smtp timeout not a number", map[string]string{"BR_SMTP_TIMEOUT_MS": "10s"}},
		{"media type glob", map[string]string{"BR_FILE_ALLOWED_MEDIA_TYPES": "text/[plain"}},
		{"file max size", map[string]string{"BR_FILE_MAX_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BR_ENV", "dev")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestRedactedValues(t *testing.T) {
	t.Setenv("BR_ENV", "dev")
	t.Setenv("BR_REDIS_PASSWORD", "hunter2")
	t.Setenv("BR_SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/secret")

	cfg, err := Load()
	require.NoError(t, err)

	values := cfg.RedactedValues()
	require.Equal(t, "[REDACTED]", values["BR_REDIS_PASSWORD"])
	require.Equal(t, "[REDACTED]", values["BR_SLACK_WEBHOOK_URL"])
	require.Equal(t, "", values["BR_SMTP_PASSWORD"])
	require.Equal(t, "10000", values["BR_SMTP_TIMEOUT_MS"])
	require.Equal(t, "1/hour,10/day", values["BR_RATE_LIMIT_IP"])
}
