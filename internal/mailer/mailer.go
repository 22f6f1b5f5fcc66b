// Package mailer delivers the verification emails.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/verifybot/internal/logger"
)

// Sender sends one plain-text email.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through an SMTP relay, with PLAIN auth when a username is set.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	now      func() time.Time
}

func NewSMTPMailer(host, port, from, username, password string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
		now:      time.Now,
	}
}

func (m *SMTPMailer) buildMessage(to, subject, body string) []byte {
	domain := m.host
	if at := strings.LastIndex(m.from, "@"); at >= 0 {
		domain = m.from[at+1:]
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Message-ID: <%s@%s>\r\n", uuid.New().String(), domain)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return []byte(msg.String())
}

// SendEmail delivers the message. net/smtp has no context support, so ctx is
// only checked before dialing.
func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	err := smtp.SendMail(net.JoinHostPort(m.host, m.port), auth, m.from, []string{to}, m.buildMessage(to, subject, body))
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	return nil
}

// LogMailer writes the email to the log instead of sending it. It is used
// when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	logger.Log.Infow("email not sent, no SMTP host configured",
		"to", to,
		"subject", subject,
		"body", body,
	)

	return nil
}

// New returns an SMTPMailer when host is set and a LogMailer otherwise.
func New(host, port, from, username, password string) Sender {
	if host == "" {
		return LogMailer{}
	}

	return NewSMTPMailer(host, port, from, username, password)
}
