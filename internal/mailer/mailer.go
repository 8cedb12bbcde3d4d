// Package mailer sends outbound email over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
)

// ErrNotConfigured is returned when no SMTP host or sender is set.
var ErrNotConfigured = errors.New("smtp not configured")

// Message is one outbound email. HTML is sent as the only part.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	DialTimeout time.Duration
	// TLSConfig overrides the client TLS settings; tests use it to trust a
	// local server.
	TLSConfig *tls.Config
}

// ConfigFrom copies the smtp section of the application config.
func ConfigFrom(c common.SMTPConfig) Config {
	from := c.From
	if from == "" {
		from = c.Username
	}
	return Config{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     from,
		FromName: c.FromName,
	}
}

// SMTP sends mail with implicit TLS on port 465 and STARTTLS (when offered)
// on any other port.
type SMTP struct {
	cfg Config
	log *slog.Logger
}

func NewSMTP(cfg Config, logger *slog.Logger) *SMTP {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	return &SMTP{cfg: cfg, log: logger}
}

// New returns an SMTP mailer, or a logging stand-in when no host is set.
func New(cfg Config, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		if logger == nil {
			logger = slog.Default()
		}
		return &LogMailer{log: logger}
	}
	return NewSMTP(cfg, logger)
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("%w: recipient required", common.ErrInvalidInput)
	}

	start := time.Now()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	body := BuildMessage(s.cfg.FromName, s.cfg.From, msg, time.Now())

	if err := s.deliver(ctx, addr, msg.To, body); err != nil {
		s.log.Error("mailer.send.failed", "to", msg.To, "host", s.cfg.Host, "port", s.cfg.Port, "error", err)
		return err
	}
	s.log.Info("mailer.send.ok", "to", msg.To, "subject", msg.Subject, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *SMTP) tlsConfig() *tls.Config {
	if s.cfg.TLSConfig != nil {
		return s.cfg.TLSConfig.Clone()
	}
	return &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
}

func (s *SMTP) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: s.cfg.DialTimeout}
	if s.cfg.Port == 465 {
		td := &tls.Dialer{NetDialer: d, Config: s.tlsConfig()}
		return td.DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

func (s *SMTP) deliver(ctx context.Context, addr, to string, body []byte) error {
	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if s.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig()); err != nil {
				return fmt.Errorf("start tls: %w", err)
			}
		}
	}

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp authentication failed: %w", err)
			}
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set mail recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	return client.Quit()
}

// BuildMessage renders headers and a base64 HTML body.
func BuildMessage(fromName, from string, msg Message, now time.Time) []byte {
	var b strings.Builder
	sender := from
	if fromName != "" {
		sender = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), from)
	}
	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(encodeBase64Lines(msg.HTML))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func encodeBase64Lines(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	const lineLen = 76

	var out strings.Builder
	for i := 0; i < len(encoded); i += lineLen {
		end := min(i+lineLen, len(encoded))
		out.WriteString(encoded[i:end])
		if end < len(encoded) {
			out.WriteString("\r\n")
		}
	}
	return out.String()
}

// LogMailer records messages in the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	log *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Warn("mailer.disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}
