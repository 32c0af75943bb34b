package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	config "github.com/regmail/regmail/internal/config/notifier"
	"github.com/regmail/regmail/internal/domain/notification"
)

// Mailer delivers a single message over SMTP. Errors coming back from the
// server with a 5xx code are wrapped as permanent; connection problems,
// timeouts and 4xx responses stay transient so the retry policy keeps
// trying them.
type Mailer struct {
	addr    string
	auth    smtp.Auth
	useTLS  bool
	timeout time.Duration
	from    string

	log *zap.Logger
}

func NewMailer(cfg config.SMTP) *Mailer {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host(cfg.Addr))
	}
	return &Mailer{
		addr:    cfg.Addr,
		auth:    auth,
		useTLS:  cfg.UseTLS,
		timeout: cfg.Timeout,
		from:    cfg.From,
		log:     zap.L().With(zap.String("component", "notifier.mailer")),
	}
}

func (m *Mailer) WithLogger(l *zap.Logger) *Mailer {
	if l == nil {
		return m
	}
	cp := *m
	cp.log = l.With(zap.String("component", "notifier.mailer"))
	return &cp
}

var _ notification.Mailer = (*Mailer)(nil)

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + body + "\r\n")

	start := time.Now()
	log := m.log.With(
		zap.String("smtp_addr", m.addr),
		zap.Bool("tls", m.useTLS),
		zap.String("to", to),
		zap.String("subject", subject),
	)

	log.Debug("sending email...")
	if err := m.send(ctx, to, msg); err != nil {
		log.Warn("send failed", zap.Error(err))
		return classify(err)
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// send runs one full SMTP exchange. The connection deadline covers the
// whole exchange, not just the dial, so a stalled server cannot hold a
// worker past the configured timeout.
func (m *Mailer) send(ctx context.Context, to string, msg []byte) error {
	dialer := net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if m.useTLS {
		conn = tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
	}

	c, err := smtp.NewClient(conn, host(m.addr))
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func classify(err error) error {
	var tperr *textproto.Error
	if errors.As(err, &tperr) && tperr.Code >= 500 && tperr.Code < 600 {
		return notification.Permanent("smtp rejected message", err)
	}
	return err
}

func host(addr string) string {
	if i := strings.Index(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
