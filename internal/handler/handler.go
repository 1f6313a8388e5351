// Package handler delivers finalized bug reports to their destinations.
package handler

import (
	"context"
	"sync"

	"github.com/luki-ev/synod-bug-report/internal/report"
)

// Handler processes a finalized report. An error carrying a
// *validation.Error rejects the submission as the client's fault; any other
// error is a server failure.
type Handler interface {
	HandleReport(ctx context.Context, r *report.Report) error
}

// Chain runs handlers in order and stops at the first error.
type Chain []Handler

func (c Chain) HandleReport(ctx context.Context, r *report.Report) error {
	for _, h := range c {
		if err := h.HandleReport(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Recorder remembers the last report it handled and does nothing else.
type Recorder struct {
	mu    sync.Mutex
	last  *report.Report
	count int
}

func (rec *Recorder) HandleReport(_ context.Context, r *report.Report) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.last = r
	rec.count++
	return nil
}

// Last returns the most recently handled report, or nil.
func (rec *Recorder) Last() *report.Report {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.last
}

// Count returns the number of handled reports.
func (rec *Recorder) Count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.count
}
