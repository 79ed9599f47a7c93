package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/lysyi3m/newsdigest/app/cfg"
)

// Sender delivers one rendered digest to a set of recipients.
type Sender interface {
	Send(ctx context.Context, recipients []string, subject, htmlBody string) error
}

type SMTPSender struct {
	host     string
	port     string
	from     string
	fromName string
	auth     smtp.Auth
}

func NewSMTPSender() *SMTPSender {
	c := cfg.Get()

	var auth smtp.Auth
	if c.SMTPUser != "" && c.SMTPPassword != "" {
		auth = smtp.PlainAuth("", c.SMTPUser, c.SMTPPassword, c.SMTPHost)
	}

	return &SMTPSender{
		host:     c.SMTPHost,
		port:     c.SMTPPort,
		from:     c.SMTPFrom,
		fromName: c.SMTPFromName,
		auth:     auth,
	}
}

func (s *SMTPSender) Send(ctx context.Context, recipients []string, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	fromHeader := s.from
	if strings.TrimSpace(s.fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	toHeader := make([]string, len(recipients))
	for i, r := range recipients {
		toHeader[i] = sanitizeHeader(r)
	}

	msg := []string{
		fmt.Sprintf("From: %s", sanitizeHeader(fromHeader)),
		fmt.Sprintf("To: %s", strings.Join(toHeader, ", ")),
		fmt.Sprintf("Subject: %s", sanitizeHeader(subject)),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		htmlBody,
	}

	body := []byte(strings.Join(msg, "\r\n"))

	// Dial and converse under the caller's deadline; a hung server must
	// not stall the attempt past its timeout.
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP handshake failed: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}

	for _, r := range recipients {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("RCPT TO rejected for %s: %w", r, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return c.Quit()
}

// Header values must not contain CR/LF, an injected newline would let a
// recipient smuggle extra headers into the message.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
