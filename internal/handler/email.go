package handler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/luki-ev/synod-bug-report/internal/report"
	"github.com/rs/zerolog/log"
)

// DefaultValuesToSend lists the report values included in notification mails.
var DefaultValuesToSend = []string{
	"user_id",
	"device_id",
	"user_agent",
	"version",
	"build",
	"text",
}

// Message is a plain-text mail.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Mailer sends mails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultSMTPTimeout bounds a complete SMTP conversation.
const DefaultSMTPTimeout = 10 * time.Second

// SMTPMailer sends mails through an SMTP relay.
type SMTPMailer struct {
	Addr     string
	Username string
	Password string

	// Timeout bounds dialing and the whole conversation. Zero means
	// DefaultSMTPTimeout. An earlier ctx deadline wins.
	Timeout time.Duration
}

// Send implements Mailer. STARTTLS is used when the relay offers it and
// the connection is authenticated with PLAIN auth when a username is
// configured.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.New("no recipients")
	}

	host, _, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return fmt.Errorf("invalid smtp address %q: %w", m.Addr, err)
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", m.Addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("smtp deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if err := m.converse(c, host, msg); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) converse(c *smtp.Client, host string, msg Message) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.Username, m.Password, host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(formatMessage(msg, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data end: %w", err)
	}
	return nil
}

func formatMessage(msg Message, date time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", msg.From)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", date.Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(msg.Text, "\n", "\r\n"))
	return []byte(sb.String())
}

// Email notifies a fixed list of recipients about every report. Send
// failures are logged and never fail the report.
type Email struct {
	mailer       Mailer
	from         string
	to           []string
	valuesToSend []string
	now          func() time.Time
}

// EmailOption configures an Email handler.
type EmailOption func(*Email)

// WithValuesToSend replaces DefaultValuesToSend.
func WithValuesToSend(keys ...string) EmailOption {
	return func(e *Email) {
		e.valuesToSend = append([]string(nil), keys...)
	}
}

// WithEmailNow replaces time.Now for the submission timestamp.
func WithEmailNow(now func() time.Time) EmailOption {
	return func(e *Email) {
		e.now = now
	}
}

// NewEmail creates an Email handler.
func NewEmail(mailer Mailer, from string, to []string, opts ...EmailOption) *Email {
	e := &Email{
		mailer:       mailer,
		from:         from,
		to:           append([]string(nil), to...),
		valuesToSend: append([]string(nil), DefaultValuesToSend...),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Email) HandleReport(ctx context.Context, r *report.Report) error {
	msg := Message{
		From:    e.from,
		To:      e.to,
		Subject: "New bug report",
		Text:    e.buildText(r),
	}

	if err := e.mailer.Send(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Strs("to", e.to).
			Msg("Sending email failed")
	}
	return nil
}

func (e *Email) buildText(r *report.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A new bug report has been submitted at %s\n\n", e.now().Format(time.DateTime))
	for _, key := range e.valuesToSend {
		fmt.Fprintf(&sb, "%s: %s\n", key, r.Value(key, ""))
	}
	return sb.String()
}
