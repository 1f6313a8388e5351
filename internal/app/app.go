package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/luki-ev/synod-bug-report/internal/config"
	"github.com/luki-ev/synod-bug-report/internal/handler"
	"github.com/luki-ev/synod-bug-report/internal/ratelimit"
	"github.com/luki-ev/synod-bug-report/internal/report"
	"github.com/luki-ev/synod-bug-report/internal/slack"
	"github.com/luki-ev/synod-bug-report/internal/validation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App holds the application state
type App struct {
	Config  *config.Config
	Router  http.Handler
	Limiter *ratelimit.Limiter

	redis     *ratelimit.RedisStore
	logCloser io.Closer
	server    *http.Server
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize logger
	logCloser := setupLogger(cfg)

	log.Info().Msg("Initializing bug report service")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	app := &App{
		Config:    cfg,
		logCloser: logCloser,
	}

	// Rate limit store
	var store ratelimit.Store
	if cfg.RedisAddr != "" {
		log.Info().Str("addr", cfg.RedisAddr).Msg("Connecting to Redis...")
		redisStore, err := ratelimit.NewRedisStore(ctx, ratelimit.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info().Msg("Redis connection established")
		app.redis = redisStore
		store = redisStore
	} else {
		log.Warn().Msg("BR_REDIS_ADDR not set: rate limits are kept in process memory")
		store = ratelimit.NewMemoryStore()
	}

	var limiterOpts []ratelimit.Option
	if cfg.RateLimitFailOpen {
		limiterOpts = append(limiterOpts, ratelimit.WithFailOpen())
	}
	limiter, err := ratelimit.New(store, cfg.RateLimitIP, cfg.RateLimitGlobal, limiterOpts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	app.Limiter = limiter

	validator, err := validation.New(cfg.Validation)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}
	factory := report.NewFactory(report.WithChecker(validator))

	app.Router = NewRouter(cfg, factory, BuildHandler(cfg), limiter, app.ready)

	log.Info().Msg("Application initialized successfully")
	return app, nil
}

// BuildHandler assembles the handler chain configured in cfg. Without any
// configured destination reports are only recorded in memory.
func BuildHandler(cfg *config.Config) handler.Handler {
	var chain handler.Chain

	if cfg.StorageDir != "" {
		var opts []handler.FilesystemOption
		if cfg.StoragePretty {
			opts = append(opts, handler.WithPrettyJSON())
		}
		chain = append(chain, handler.NewFilesystem(cfg.StorageDir, opts...))
		log.Info().Str("dir", cfg.StorageDir).Msg("Filesystem handler enabled")
	}

	if cfg.SMTPAddr != "" {
		mailer := &handler.SMTPMailer{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			Timeout:  time.Duration(cfg.SMTPTimeoutMS) * time.Millisecond,
		}
		var opts []handler.EmailOption
		if len(cfg.MailValues) > 0 {
			opts = append(opts, handler.WithValuesToSend(cfg.MailValues...))
		}
		chain = append(chain, handler.NewEmail(mailer, cfg.MailFrom, cfg.MailTo, opts...))
		log.Info().Strs("to", cfg.MailTo).Msg("Email handler enabled")
	}

	if cfg.SlackWebhookURL != "" {
		chain = append(chain, handler.NewSlack(slack.NewClient(cfg.SlackTimeoutMS), cfg.SlackWebhookURL))
		log.Info().Msg("Slack handler enabled")
	}

	if len(chain) == 0 {
		log.Warn().Msg("No report destination configured: reports are discarded")
		return &handler.Recorder{}
	}
	return chain
}

func (a *App) ready(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx)
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully and releases all resources
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		log.Info().Msg("Stopping HTTP server")
		err = a.server.Shutdown(ctx)
	}
	a.Close()
	return err
}

// Close releases the application's resources
func (a *App) Close() {
	log.Info().Msg("Shutting down application")
	if a.redis != nil {
		log.Info().Msg("Closing Redis connection")
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
		a.redis = nil
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

// setupLogger configures the global logger. Development uses pretty console
// output, production JSON. BR_LOG_FILE adds a rotated JSON log file whose
// closer is returned.
func setupLogger(cfg *config.Config) io.Closer {
	var console io.Writer = os.Stdout
	if cfg.IsDev() {
		console = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	var closer io.Closer
	writer := console
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		closer = file
		writer = zerolog.MultiLevelWriter(console, file)
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	// Set log level
	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", cfg.LogLevel).Msg("Logger configured")
	return closer
}
