package seedmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/mailgroom/mailgroom/internal/config"
)

const smtpDialTimeout = 30 * time.Second

// Render builds the complete RFC 5322 message for one generated email.
// Each message gets a fresh UUID Message-ID.
func Render(e Email) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(e.Subject)
	h.SetMessageID(fmt.Sprintf("%s@seed.mailgroom", uuid.NewString()))

	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return nil, fmt.Errorf("parse from %q: %w", e.From, err)
	}
	to, err := mail.ParseAddress(e.To)
	if err != nil {
		return nil, fmt.Errorf("parse to %q: %w", e.To, err)
	}
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})

	var buf bytes.Buffer
	mw, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}
	if _, err := io.WriteString(mw, e.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Sender delivers generated mail over SMTP. Connections are ephemeral,
// one per message.
type Sender struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// NewSender creates a Sender for the given SMTP account.
func NewSender(cfg config.SMTPConfig, logger *slog.Logger) *Sender {
	return &Sender{cfg: cfg, logger: logger}
}

// Send renders and delivers one email.
func (s *Sender) Send(ctx context.Context, e Email) error {
	msg, err := Render(e)
	if err != nil {
		return err
	}
	return s.deliver(ctx, e.From, e.To, msg)
}

// SendBatch delivers a batch with a small delay between messages so
// test servers keep up. It returns how many were sent and how many
// failed.
func (s *Sender) SendBatch(ctx context.Context, emails []Email, delay time.Duration) (sent, failed int) {
	for i, e := range emails {
		if err := ctx.Err(); err != nil {
			failed += len(emails) - i
			return sent, failed
		}
		if err := s.Send(ctx, e); err != nil {
			s.logger.Warn("send failed", "subject", e.Subject, "error", err)
			failed++
			continue
		}
		s.logger.Info("sent", "category", e.Category, "subject", e.Subject)
		sent++
		if delay > 0 && i < len(emails)-1 {
			time.Sleep(delay)
		}
	}
	return sent, failed
}

// deliver speaks SMTP for one message. Port 465 means implicit TLS;
// otherwise STARTTLS is used when the server offers it.
func (s *Sender) deliver(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	dialTimeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var client *smtp.Client
	if s.cfg.Port == 465 {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
		if err != nil {
			return fmt.Errorf("dial SMTPS %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create SMTP client on %s: %w", addr, err)
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial SMTP %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create SMTP client on %s: %w", addr, err)
		}
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if s.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}
	return client.Quit()
}
