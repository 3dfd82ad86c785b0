package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/go-api-authcore/internal/config"
	"github.com/go-api-authcore/internal/infrastructure/otpmsg"
)

// Mailer delivers one-time codes by email over SMTP.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	tls      *tls.Config // nil verifies against system roots
}

func NewMailer(cfg *config.Config) *Mailer {
	d := &net.Dialer{Timeout: 10 * time.Second}
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		dial:     d.DialContext,
	}
}

// SendOTPEmail mails code for purpose to address.
func (m *Mailer) SendOTPEmail(ctx context.Context, address, code, purpose string) error {
	return m.SendEmail(ctx, address, otpmsg.Subject(purpose), otpmsg.EmailBody(code, purpose))
}

// SendEmail sends a plain-text message. The connection is bounded by ctx's deadline.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.host, m.port)
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(m.tlsConfig()); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

// tlsConfig pins the certificate check to the configured SMTP host.
func (m *Mailer) tlsConfig() *tls.Config {
	cfg := &tls.Config{}
	if m.tls != nil {
		cfg = m.tls.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = m.host
	}
	return cfg
}
