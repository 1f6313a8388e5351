package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxTextPreview bounds the report text quoted in a notification.
const maxTextPreview = 300

// ReportMessage contains all information needed to announce a bug report in Slack
type ReportMessage struct {
	UserID    string
	DeviceID  string
	UserAgent string
	Version   string
	Text      string
	Labels    []string
	FileCount int
}

// Client handles Slack webhook notifications
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a new Slack client with the specified timeout
func NewClient(timeoutMS int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		timeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

// slackPayload represents the JSON payload sent to Slack
type slackPayload struct {
	Text string `json:"text"`
}

// PostReportNotification sends a bug report notification to Slack.
// It never returns errors to the caller; all failures are logged at WARN level
// so that Slack outages cannot fail report intake.
func (c *Client) PostReportNotification(ctx context.Context, webhookURL string, msg ReportMessage) {
	jsonData, err := json.Marshal(slackPayload{Text: BuildMessageText(msg)})
	if err != nil {
		log.Warn().
			Err(err).
			Str("device_id", msg.DeviceID).
			Msg("Failed to marshal Slack payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Warn().
			Err(err).
			Str("webhook_url", "<set>").
			Msg("Failed to create Slack request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeoutError(err) {
			log.Warn().
				Err(err).
				Dur("timeout_ms", c.timeout).
				Str("device_id", msg.DeviceID).
				Msg("Slack notification timed out")
		} else {
			log.Warn().
				Err(err).
				Str("device_id", msg.DeviceID).
				Msg("Failed to send Slack notification")
		}
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("device_id", msg.DeviceID).
			Msg("Slack webhook returned client error (4xx)")
		return
	case resp.StatusCode >= 500:
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("device_id", msg.DeviceID).
			Msg("Slack webhook returned server error (5xx)")
		return
	case resp.StatusCode != http.StatusOK:
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("device_id", msg.DeviceID).
			Msg("Slack webhook returned unexpected status code")
		return
	}

	log.Info().
		Str("device_id", msg.DeviceID).
		Int("file_count", msg.FileCount).
		Msg("Slack notification sent successfully")
}

// BuildMessageText constructs the Slack message text for a bug report
func BuildMessageText(msg ReportMessage) string {
	var sb strings.Builder
	sb.WriteString("🐞 *New Bug Report*\n\n")
	fmt.Fprintf(&sb, "*User:* %s\n", orNone(msg.UserID))
	fmt.Fprintf(&sb, "*Device:* %s\n", orNone(msg.DeviceID))
	fmt.Fprintf(&sb, "*User agent:* %s\n", orNone(msg.UserAgent))
	if msg.Version != "" {
		fmt.Fprintf(&sb, "*Version:* %s\n", msg.Version)
	}
	if len(msg.Labels) > 0 {
		fmt.Fprintf(&sb, "*Labels:* %s\n", strings.Join(msg.Labels, ", "))
	}
	fmt.Fprintf(&sb, "*Files:* %d\n", msg.FileCount)

	text := []rune(msg.Text)
	if len(text) > maxTextPreview {
		text = append(text[:maxTextPreview], '…')
	}
	fmt.Fprintf(&sb, "\n>%s", strings.ReplaceAll(string(text), "\n", "\n>"))

	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "_none_"
	}
	return s
}

// isTimeoutError checks if an error is a timeout error
func isTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
