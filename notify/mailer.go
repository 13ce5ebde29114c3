package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/MrEthical07/goIdentity/confirmation"
)

// MailConfig configures SMTP delivery.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends confirmation links as HTML mail.
type Mailer struct {
	dialer sender
	from   string
}

func NewMailer(cfg MailConfig) (*Mailer, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var mailTemplates = map[confirmation.TokenType]mailTemplate{
	confirmation.RegistrationConfirmation: {
		subject: "Confirm your account",
		body: template.Must(template.New("registration").Parse(
			`<p>Hello {{.Username}},</p><p>Activate your account by following <a href="{{.Link}}">this link</a>.</p>`)),
	},
	confirmation.EmailChangeOld: {
		subject: "Confirm your email change",
		body: template.Must(template.New("email_old").Parse(
			`<p>Hello {{.Username}},</p><p>Someone asked to move this account to a new address. If it was you, <a href="{{.Link}}">confirm the change</a>.</p>`)),
	},
	confirmation.EmailChangeNew: {
		subject: "Verify your new email address",
		body: template.Must(template.New("email_new").Parse(
			`<p>Hello {{.Username}},</p><p>Verify this address by following <a href="{{.Link}}">this link</a>.</p>`)),
	},
	confirmation.PasswordChange: {
		subject: "Confirm your password change",
		body: template.Must(template.New("password_change").Parse(
			`<p>Hello {{.Username}},</p><p>Confirm your new password by following <a href="{{.Link}}">this link</a>.</p>`)),
	},
	confirmation.PasswordReset: {
		subject: "Password reset request",
		body: template.Must(template.New("password_reset").Parse(
			`<p>Hello {{.Username}},</p><p>Reset your password by following <a href="{{.Link}}">this link</a>. Ignore this message if you did not ask for it.</p>`)),
	},
	confirmation.UsernameChange: {
		subject: "Confirm your username change",
		body: template.Must(template.New("username_change").Parse(
			`<p>Hello {{.Username}},</p><p>Confirm your new username by following <a href="{{.Link}}">this link</a>.</p>`)),
	},
}

// Render returns the subject and HTML body for t.
func Render(t confirmation.TokenType, link string, data map[string]string) (string, string, error) {
	tpl, ok := mailTemplates[t]
	if !ok {
		return "", "", fmt.Errorf("no mail template for %s", t)
	}

	ctx := map[string]string{"Link": link}
	for k, v := range data {
		if k != "Link" {
			ctx[k] = v
		}
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, ctx); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", tpl.body.Name(), err)
	}
	return tpl.subject, buf.String(), nil
}

func (m *Mailer) SendConfirmationMessage(ctx context.Context, destination string, t confirmation.TokenType, link string, data map[string]string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if destination == "" {
		return fmt.Errorf("%w: empty destination", ErrDelivery)
	}

	subject, body, err := Render(t, link, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", destination)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}
