package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/luki-ev/synod-bug-report/internal/handler"
	"github.com/luki-ev/synod-bug-report/internal/metrics"
	"github.com/rs/zerolog/log"
)

// PruneReports removes report directories below root whose timestamp is
// older than maxAge relative to now. Entries that are not report
// directories are left alone. The function is idempotent - safe to run
// repeatedly.
//
// Returns the number of directories removed.
func PruneReports(ctx context.Context, root string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list report directory: %w", err)
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}

		created, ok := handler.ParseReportDirTime(entry.Name(), now.Location())
		if !ok || !created.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove report %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

// RunRetentionJob prunes stored reports older than retentionDays and logs
// the result. This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, root string, retentionDays int) error {
	log.Info().
		Str("storage_dir", root).
		Int("retention_days", retentionDays).
		Msg("Starting retention job")

	startTime := time.Now()

	removed, err := PruneReports(ctx, root, time.Duration(retentionDays)*24*time.Hour, startTime)
	metrics.ReportsPruned.Add(float64(removed))
	if err != nil {
		log.Error().Err(err).Int("reports_removed", removed).Msg("Failed to prune old reports")
		return fmt.Errorf("report cleanup failed: %w", err)
	}

	log.Info().
		Int("reports_removed", removed).
		Dur("duration", time.Since(startTime)).
		Msg("Retention job completed")

	return nil
}
