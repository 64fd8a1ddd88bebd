// Package mailer sends transactional account emails over SMTP, either
// directly or through a message queue drained by a Worker.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"
)

// Message is a single outgoing email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient email address cannot be empty")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("email subject cannot be empty")
	}
	return nil
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends messages through an SMTP relay.
type SMTPMailer struct {
	dialer dialer
	from   string
}

// NewSMTPMailer creates an SMTPMailer from cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var (
	verificationTmpl = template.Must(template.New("verify").Parse(
		`<p>Welcome to ScriptSea!</p><p>Confirm your email address by opening the link below. It expires in 24 hours.</p><p><a href="{{.}}">Verify my email</a></p>`))
	resetTmpl = template.Must(template.New("reset").Parse(
		`<p>We received a request to reset your ScriptSea password.</p><p><a href="{{.}}">Choose a new password</a></p><p>If you did not ask for this you can ignore this email.</p>`))
)

func render(t *template.Template, link string) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, link); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Notifier renders account emails and hands them to a Sender.
type Notifier struct {
	sender Sender
}

// NewNotifier creates a Notifier delivering through sender.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// SendVerification mails the email verification link.
func (n *Notifier) SendVerification(ctx context.Context, email, link string) error {
	body, err := render(verificationTmpl, link)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{To: email, Subject: "Verify your ScriptSea email", HTML: body})
}

// SendPasswordReset mails a password reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, email, link string) error {
	body, err := render(resetTmpl, link)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{To: email, Subject: "Reset your ScriptSea password", HTML: body})
}
