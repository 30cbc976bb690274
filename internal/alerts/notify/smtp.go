package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

// SMTPChannel sends notifications by email.
type SMTPChannel struct {
	addr      string
	from      string
	defaultTo []string
	auth      smtp.Auth
	sendMail  func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// SMTPOption configures the SMTP channel.
type SMTPOption func(*SMTPChannel)

// WithSMTPAuth sets plain authentication credentials.
func WithSMTPAuth(username, password string) SMTPOption {
	return func(ch *SMTPChannel) {
		host, _, err := net.SplitHostPort(ch.addr)
		if err != nil {
			host = ch.addr
		}
		ch.auth = smtp.PlainAuth("", username, password, host)
	}
}

// NewSMTPChannel constructs an email channel.
func NewSMTPChannel(addr, from string, defaultTo []string, opts ...SMTPOption) (*SMTPChannel, error) {
	if addr == "" {
		return nil, errors.New("smtp channel: empty address")
	}
	if from == "" {
		return nil, errors.New("smtp channel: empty sender")
	}
	channel := &SMTPChannel{
		addr:      addr,
		from:      from,
		defaultTo: defaultTo,
		sendMail:  smtp.SendMail,
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Name implements Channel.
func (s *SMTPChannel) Name() string { return "smtp" }

// Send emails the message to its recipients, falling back to the
// channel defaults when the message carries none.
func (s *SMTPChannel) Send(ctx context.Context, msg Message) error {
	if s == nil || s.addr == "" {
		return errors.New("smtp channel: empty address")
	}
	to := msg.To
	if len(to) == 0 {
		to = s.defaultTo
	}
	if len(to) == 0 {
		return errors.New("smtp channel: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Accented subjects must be RFC 2047 encoded or MTAs mangle them.
	subject := mime.QEncoding.Encode("utf-8", msg.Subject)
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		s.from, strings.Join(to, ", "), subject, msg.Body)
	return s.sendMail(s.addr, s.auth, s.from, to, []byte(body))
}
