// Command bugreportd accepts bug reports over HTTP and hands them to the
// configured destinations.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/luki-ev/synod-bug-report/internal/app"
	"github.com/luki-ev/synod-bug-report/internal/config"
	"github.com/luki-ev/synod-bug-report/internal/retention"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; the environment always wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("bugreportd stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	scheduler, err := newRetentionScheduler(ctx, cfg)
	if err != nil {
		application.Close()
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() {
			// wait for a running prune to finish
			<-scheduler.Stop().Done()
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- application.Start()
	}()

	select {
	case err := <-serveErr:
		application.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)

	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info().Msg("Shutdown complete")
		return nil
	}
}

// newRetentionScheduler prunes stored reports daily at 03:00 UTC, every
// minute in dev. It returns nil when retention is disabled.
func newRetentionScheduler(ctx context.Context, cfg *config.Config) (*cron.Cron, error) {
	if cfg.RetentionDays <= 0 {
		log.Info().Msg("Report retention disabled")
		return nil, nil
	}

	schedule := "0 3 * * *"
	if cfg.IsDev() {
		schedule = "* * * * *"
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(schedule, func() {
		if err := retention.RunRetentionJob(ctx, cfg.StorageDir, cfg.RetentionDays); err != nil {
			log.Error().Err(err).Msg("Retention job failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule retention job: %w", err)
	}

	log.Info().
		Str("schedule", schedule).
		Int("retention_days", cfg.RetentionDays).
		Msg("Report retention scheduled")
	return c, nil
}
