package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// Mailer is the notification channel consumed by the account services.
// Implementations may fail per message; callers decide whether a delivery
// failure is visible to the client.
type Mailer interface {
	SendVerificationEmail(email, name, token string) error
	SendWelcomeEmail(email, name string) error
	SendPasswordResetEmail(email, name, token string) error
}

type Email struct {
	Subject      string
	From         string
	To           []string
	Template     string
	TemplateVars map[string]any
}

type Mailgun struct {
	domain      string
	apiKey      string
	apiBase     string
	from        string
	frontendURL string
}

func NewMailer(domain, apiKey, apiBase, from, frontendURL string) *Mailgun {
	return &Mailgun{
		domain:      domain,
		apiKey:      apiKey,
		apiBase:     apiBase,
		from:        from,
		frontendURL: frontendURL,
	}
}

func (m *Mailgun) SendTemplatedMail(e *Email) error {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	mg.SetAPIBase(m.apiBase)

	message := mg.NewMessage(e.From, e.Subject, "", e.To...)
	message.SetTemplate(e.Template)

	if e.TemplateVars != nil {
		for k, v := range e.TemplateVars {
			message.AddTemplateVariable(k, v)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	_, _, err := mg.Send(ctx, message)
	if err != nil {
		return err
	}

	return nil
}

func (m *Mailgun) SendVerificationEmail(email, name, token string) error {
	return m.SendTemplatedMail(&Email{
		Subject:  "Verify your GameTracker account",
		From:     m.from,
		To:       []string{email},
		Template: "account-verification",
		TemplateVars: map[string]any{
			"name":       name,
			"verify_url": fmt.Sprintf("%s/verify-email/%s", m.frontendURL, token),
		},
	})
}

func (m *Mailgun) SendWelcomeEmail(email, name string) error {
	return m.SendTemplatedMail(&Email{
		Subject:  "Welcome to GameTracker!",
		From:     m.from,
		To:       []string{email},
		Template: "account-welcome",
		TemplateVars: map[string]any{
			"name":      name,
			"login_url": fmt.Sprintf("%s/login", m.frontendURL),
		},
	})
}

func (m *Mailgun) SendPasswordResetEmail(email, name, token string) error {
	return m.SendTemplatedMail(&Email{
		Subject:  "GameTracker password reset",
		From:     m.from,
		To:       []string{email},
		Template: "password-reset",
		TemplateVars: map[string]any{
			"name":      name,
			"reset_url": fmt.Sprintf("%s/reset-password/%s", m.frontendURL, token),
		},
	})
}
