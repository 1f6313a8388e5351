package handler

import (
	"context"

	"github.com/luki-ev/synod-bug-report/internal/report"
	"github.com/luki-ev/synod-bug-report/internal/slack"
)

// Notifier posts report notifications. *slack.Client implements it.
type Notifier interface {
	PostReportNotification(ctx context.Context, webhookURL string, msg slack.ReportMessage)
}

// Slack announces every report in a Slack channel.
type Slack struct {
	notifier   Notifier
	webhookURL string
}

// NewSlack creates a Slack handler.
func NewSlack(notifier Notifier, webhookURL string) *Slack {
	return &Slack{
		notifier:   notifier,
		webhookURL: webhookURL,
	}
}

// HandleReport never fails; delivery problems are logged by the notifier.
func (s *Slack) HandleReport(ctx context.Context, r *report.Report) error {
	s.notifier.PostReportNotification(ctx, s.webhookURL, slack.ReportMessage{
		UserID:    r.Value("user_id", ""),
		DeviceID:  r.Value("device_id", ""),
		UserAgent: r.Value("user_agent", ""),
		Version:   r.Value("version", ""),
		Text:      r.Value("text", ""),
		Labels:    r.Labels(),
		FileCount: r.FileCount(),
	})
	return nil
}
