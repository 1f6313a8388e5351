package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/luki-ev/synod-bug-report/internal/ratelimit"
	"github.com/luki-ev/synod-bug-report/internal/validation"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only enable behind a proxy that sets them.
	TrustProxyHeaders bool

	LogLevel string
	LogFile  string

	CORSOrigins    []string
	MaxUploadBytes int64

	RateLimitIP       []ratelimit.Window
	RateLimitGlobal   []ratelimit.Window
	RateLimitFailOpen bool
	BurstRPM          int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	StorageDir    string
	StoragePretty bool
	RetentionDays int

	SMTPAddr      string
	SMTPUser      string
	SMTPPassword  string
	SMTPTimeoutMS int
	MailFrom      string
	MailTo        []string
	// MailValues lists the report values quoted in notification mails.
	// Empty keeps the email handler's default.
	MailValues []string

	SlackWebhookURL string
	SlackTimeoutMS  int

	Validation validation.Limits
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("BR_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("BR_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("BR_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("BR_HTTP_ADDR", ":8080")

	var err error
	cfg.TrustProxyHeaders, err = getEnvBoolOrDefault("BR_TRUST_PROXY_HEADERS", false)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = getEnvOrDefault("BR_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("BR_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}
	cfg.LogFile = strings.TrimSpace(os.Getenv("BR_LOG_FILE"))

	cfg.CORSOrigins = getEnvList("BR_CORS_ORIGINS", []string{"*"})

	cfg.MaxUploadBytes, err = getEnvInt64OrDefault("BR_MAX_UPLOAD_BYTES", 64*1024*1024)
	if err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("BR_MAX_UPLOAD_BYTES must be positive (got: %d)", cfg.MaxUploadBytes)
	}

	cfg.RateLimitIP, err = getEnvWindows("BR_RATE_LIMIT_IP", "1/hour,10/day")
	if err != nil {
		return nil, err
	}
	cfg.RateLimitGlobal, err = getEnvWindows("BR_RATE_LIMIT_GLOBAL", "10/hour,20/day")
	if err != nil {
		return nil, err
	}
	cfg.RateLimitFailOpen, err = getEnvBoolOrDefault("BR_RATE_LIMIT_FAIL_OPEN", false)
	if err != nil {
		return nil, err
	}
	cfg.BurstRPM, err = getEnvIntOrDefault("BR_BURST_RPM", 60)
	if err != nil {
		return nil, err
	}
	if cfg.BurstRPM < 0 {
		return nil, fmt.Errorf("BR_BURST_RPM must not be negative (got: %d)", cfg.BurstRPM)
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("BR_REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("BR_REDIS_PASSWORD")
	cfg.RedisDB, err = getEnvIntOrDefault("BR_REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisPrefix = getEnvOrDefault("BR_REDIS_PREFIX", "bugreport:ratelimit:")

	cfg.StorageDir = strings.TrimSpace(os.Getenv("BR_STORAGE_DIR"))
	cfg.StoragePretty, err = getEnvBoolOrDefault("BR_STORAGE_PRETTY", false)
	if err != nil {
		return nil, err
	}
	cfg.RetentionDays, err = getEnvIntOrDefault("BR_RETENTION_DAYS", 0)
	if err != nil {
		return nil, err
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("BR_RETENTION_DAYS must not be negative (got: %d)", cfg.RetentionDays)
	}
	if cfg.RetentionDays > 0 && cfg.StorageDir == "" {
		return nil, fmt.Errorf("BR_RETENTION_DAYS requires BR_STORAGE_DIR")
	}

	cfg.SMTPAddr = strings.TrimSpace(os.Getenv("BR_SMTP_ADDR"))
	cfg.SMTPUser = strings.TrimSpace(os.Getenv("BR_SMTP_USER"))
	cfg.SMTPPassword = os.Getenv("BR_SMTP_PASSWORD")
	cfg.MailFrom = strings.TrimSpace(os.Getenv("BR_MAIL_FROM"))
	cfg.MailTo = getEnvList("BR_MAIL_TO", nil)
	cfg.MailValues = getEnvList("BR_MAIL_VALUES", nil)
	cfg.SMTPTimeoutMS, err = getEnvIntOrDefault("BR_SMTP_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	if cfg.SMTPTimeoutMS <= 0 || cfg.SMTPTimeoutMS > 120000 {
		return nil, fmt.Errorf("BR_SMTP_TIMEOUT_MS must be between 1 and 120000 (got: %d)", cfg.SMTPTimeoutMS)
	}
	if cfg.SMTPAddr != "" && (cfg.MailFrom == "" || len(cfg.MailTo) == 0) {
		return nil, fmt.Errorf("BR_SMTP_ADDR requires BR_MAIL_FROM and BR_MAIL_TO")
	}

	cfg.SlackWebhookURL = strings.TrimSpace(os.Getenv("BR_SLACK_WEBHOOK_URL"))
	cfg.SlackTimeoutMS, err = getEnvIntOrDefault("BR_SLACK_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.SlackTimeoutMS <= 0 || cfg.SlackTimeoutMS > 30000 {
		return nil, fmt.Errorf("BR_SLACK_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.SlackTimeoutMS)
	}

	cfg.Validation, err = loadValidationLimits()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadValidationLimits() (validation.Limits, error) {
	limits := validation.DefaultLimits()

	limits.ValueKeysRequired = getEnvList("BR_VALUE_KEYS_REQUIRED", limits.ValueKeysRequired)
	limits.FileAllowedMediaTypes = getEnvList("BR_FILE_ALLOWED_MEDIA_TYPES", limits.FileAllowedMediaTypes)

	var err error
	limits.FileMaxSize, err = getEnvInt64OrDefault("BR_FILE_MAX_SIZE", limits.FileMaxSize)
	if err != nil {
		return limits, err
	}
	limits.FileMaxCount, err = getEnvIntOrDefault("BR_FILE_MAX_COUNT", limits.FileMaxCount)
	if err != nil {
		return limits, err
	}

	if err := limits.Validate(); err != nil {
		return limits, fmt.Errorf("invalid validation limits: %w", err)
	}
	return limits, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"BR_ENV":                      c.Env,
		"BR_HTTP_ADDR":                c.HTTPAddr,
		"BR_TRUST_PROXY_HEADERS":      strconv.FormatBool(c.TrustProxyHeaders),
		"BR_LOG_LEVEL":                c.LogLevel,
		"BR_LOG_FILE":                 c.LogFile,
		"BR_CORS_ORIGINS":             strings.Join(c.CORSOrigins, ","),
		"BR_MAX_UPLOAD_BYTES":         strconv.FormatInt(c.MaxUploadBytes, 10),
		"BR_RATE_LIMIT_IP":            formatWindows(c.RateLimitIP),
		"BR_RATE_LIMIT_GLOBAL":        formatWindows(c.RateLimitGlobal),
		"BR_RATE_LIMIT_FAIL_OPEN":     strconv.FormatBool(c.RateLimitFailOpen),
		"BR_BURST_RPM":                strconv.Itoa(c.BurstRPM),
		"BR_REDIS_ADDR":               c.RedisAddr,
		"BR_REDIS_PASSWORD":           redact(c.RedisPassword),
		"BR_REDIS_DB":                 strconv.Itoa(c.RedisDB),
		"BR_REDIS_PREFIX":             c.RedisPrefix,
		"BR_STORAGE_DIR":              c.StorageDir,
		"BR_STORAGE_PRETTY":           strconv.FormatBool(c.StoragePretty),
		"BR_RETENTION_DAYS":           strconv.Itoa(c.RetentionDays),
		"BR_SMTP_ADDR":                c.SMTPAddr,
		"BR_SMTP_USER":                c.SMTPUser,
		"BR_SMTP_PASSWORD":            redact(c.SMTPPassword),
		"BR_SMTP_TIMEOUT_MS":          strconv.Itoa(c.SMTPTimeoutMS),
		"BR_MAIL_FROM":                c.MailFrom,
		"BR_MAIL_TO":                  strings.Join(c.MailTo, ","),
		"BR_MAIL_VALUES":              strings.Join(c.MailValues, ","),
		"BR_SLACK_WEBHOOK_URL":        redact(c.SlackWebhookURL),
		"BR_SLACK_TIMEOUT_MS":         strconv.Itoa(c.SlackTimeoutMS),
		"BR_VALUE_KEYS_REQUIRED":      strings.Join(c.Validation.ValueKeysRequired, ","),
		"BR_FILE_ALLOWED_MEDIA_TYPES": strings.Join(c.Validation.FileAllowedMediaTypes, ","),
		"BR_FILE_MAX_SIZE":            strconv.FormatInt(c.Validation.FileMaxSize, 10),
		"BR_FILE_MAX_COUNT":           strconv.Itoa(c.Validation.FileMaxCount),
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}

func formatWindows(windows []ratelimit.Window) string {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvWindows(key, defaultValue string) ([]ratelimit.Window, error) {
	windows, err := ratelimit.ParseWindows(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return windows, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean (got: %q)", key, value)
	}
	return parsed, nil
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
