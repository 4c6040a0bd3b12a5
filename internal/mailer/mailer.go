// Package mailer delivers transactional email through an HTTP API. Delivery
// is best effort: callers dispatch in the background and only log failures.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/contactvault/contactvault/internal/config"
)

// Dispatcher sends the two transactional emails the auth flows need.
type Dispatcher interface {
	SendConfirmation(ctx context.Context, email, name, baseURL, emailToken string) error
	SendReset(ctx context.Context, resetToken, email, name string) error
}

const confirmationHTML = `<html><body>
<p>Hi {{.Name}},</p>
<p>Please confirm your email by following
<a href="{{.BaseURL}}/auth/confirmed_email/{{.Token}}">this link</a>.</p>
</body></html>`

const resetHTML = `<html><body>
<p>Hi {{.Name}},</p>
<p>Your password reset token is <b>{{.Token}}</b>.</p>
<p>If you did not request a reset, ignore this message.</p>
</body></html>`

// HTTPMailer posts Brevo-style JSON payloads to a transactional email API.
type HTTPMailer struct {
	apiURL       string
	apiKey       string
	sender       string
	senderName   string
	client       *http.Client
	logger       *zap.Logger
	confirmation *template.Template
	reset        *template.Template
}

var _ Dispatcher = (*HTTPMailer)(nil)

// NewHTTPMailer builds the mailer and pre-parses templates.
func NewHTTPMailer(cfg config.Config, logger *zap.Logger) *HTTPMailer {
	return &HTTPMailer{
		apiURL:       cfg.MailAPIURL,
		apiKey:       cfg.MailAPIKey,
		sender:       cfg.MailSender,
		senderName:   cfg.MailSenderName,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		confirmation: template.Must(template.New("confirmation").Parse(confirmationHTML)),
		reset:        template.Must(template.New("reset").Parse(resetHTML)),
	}
}

type templateData struct {
	Name    string
	BaseURL string
	Token   string
}

// SendConfirmation emails a confirmation link built from the email token.
func (m *HTTPMailer) SendConfirmation(ctx context.Context, email, name, baseURL, emailToken string) error {
	return m.send(ctx, email, "Confirm your email", m.confirmation, templateData{
		Name:    name,
		BaseURL: baseURL,
		Token:   emailToken,
	})
}

// SendReset emails the opaque password-reset token.
func (m *HTTPMailer) SendReset(ctx context.Context, resetToken, email, name string) error {
	return m.send(ctx, email, "Reset your password", m.reset, templateData{
		Name:  name,
		Token: resetToken,
	})
}

func (m *HTTPMailer) send(ctx context.Context, to, subject string, tpl *template.Template, data templateData) error {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	payload := map[string]any{
		"sender":      map[string]string{"name": m.senderName, "email": m.sender},
		"to":          []map[string]string{{"email": to}},
		"subject":     subject,
		"htmlContent": buf.String(),
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email api status %d", resp.StatusCode)
	}

	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
