// Package email delivers payroll workflow notices over SMTP. Tenants that
// have not configured a mail relay get the discard implementation so cutoff
// transitions never stall on delivery.
package email

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"payrolld/internal/domain/notifications"
	"payrolld/internal/platform/config"
)

const (
	dialTimeout   = 10 * time.Second
	subjectPrefix = "[payroll] "
)

type discard struct{}

func (discard) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

// Client speaks SMTP to a single relay. Credentials and TLS are optional;
// a bare host/port pair is enough for an internal relay.
type Client struct {
	host     string
	port     int
	user     string
	password string
	useTLS   bool
}

func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return discard{}
	}
	return &Client{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		useTLS:   cfg.SMTPUseTLS,
	}
}

func (c *Client) Send(ctx context.Context, from, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.host, strconv.Itoa(c.port)))
	if err != nil {
		return err
	}
	defer conn.Close()

	return c.deliver(conn, from, to, compose(from, to, subject, body))
}

func (c *Client) deliver(conn net.Conn, from, to string, msg []byte) error {
	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: c.host}); err != nil {
			return err
		}
	}
	if c.user != "" {
		auth := smtp.PlainAuth("", c.user, c.password, c.host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// compose renders a plain-text notice. Subjects carry the payroll prefix so
// approvers can filter workflow mail from the rest of their inbox.
func compose(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subjectPrefix + subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
