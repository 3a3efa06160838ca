package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

type SMTPSender struct {
	addr     string
	host     string
	username string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host not set")
	}
	if port == "" {
		return nil, fmt.Errorf("smtp port not set")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(host, port),
		host:     host,
		username: username,
		password: password,
		from:     from,
		send:     smtp.SendMail,
	}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := s.send(s.addr, auth, s.from, []string{to}, buildMessage(s.from, to, subject, body)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
