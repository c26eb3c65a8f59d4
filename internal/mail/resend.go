package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"
	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/config"
)

// Mailer sends transactional account emails.
type Mailer interface {
	SendInvitation(ctx context.Context, toEmail, fullName, inviterName, tempPassword string) error
	SendWelcome(ctx context.Context, toEmail, fullName string) error
	SendPasswordReset(ctx context.Context, toEmail, fullName, resetToken string) error
}

// ResendMailer delivers through the Resend API. Without an API key it only logs.
type ResendMailer struct {
	client *resend.Client
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewResendMailer builds the mailer.
func NewResendMailer(cfg config.MailConfig, logger *zap.Logger) *ResendMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ResendMailer{cfg: cfg, logger: logger}
	if cfg.ResendAPIKey != "" {
		m.client = resend.NewClient(cfg.ResendAPIKey)
	}
	return m
}

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>{{.Title}}</h2>
<p>Hi {{.Name}},</p>
{{range .Lines}}<p>{{.}}</p>{{end}}
{{if .Link}}<p><a href="{{.Link}}">{{.LinkText}}</a></p>{{end}}
<p>Elegant Flow CRM</p>
</body></html>`))

type emailData struct {
	Title    string
	Name     string
	Lines    []string
	Link     string
	LinkText string
}

func (m *ResendMailer) SendInvitation(ctx context.Context, toEmail, fullName, inviterName, tempPassword string) error {
	return m.send(ctx, toEmail, "You have been invited to Elegant Flow", emailData{
		Title: "Welcome aboard",
		Name:  fullName,
		Lines: []string{
			fmt.Sprintf("%s added you to their organization.", inviterName),
			fmt.Sprintf("Sign in with %s and the temporary password %s, then change it.", toEmail, tempPassword),
		},
		Link:     m.cfg.AppURL + "/login",
		LinkText: "Sign in",
	})
}

func (m *ResendMailer) SendWelcome(ctx context.Context, toEmail, fullName string) error {
	return m.send(ctx, toEmail, "Welcome to Elegant Flow", emailData{
		Title:    "Your organization is ready",
		Name:     fullName,
		Lines:    []string{"Your account and organization have been created."},
		Link:     m.cfg.AppURL + "/login",
		LinkText: "Open Elegant Flow",
	})
}

func (m *ResendMailer) SendPasswordReset(ctx context.Context, toEmail, fullName, resetToken string) error {
	return m.send(ctx, toEmail, "Reset your password", emailData{
		Title:    "Password reset",
		Name:     fullName,
		Lines:    []string{"We received a request to reset your password. The link expires shortly."},
		Link:     fmt.Sprintf("%s/reset-password?token=%s", m.cfg.AppURL, resetToken),
		LinkText: "Reset password",
	})
}

func (m *ResendMailer) send(ctx context.Context, toEmail, subject string, data emailData) error {
	var body bytes.Buffer
	if err := layout.Execute(&body, data); err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	if m.client == nil {
		m.logger.Info("mail disabled, skipping send", zap.String("to", toEmail), zap.String("subject", subject))
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Elegant Flow <%s>", m.cfg.From),
		To:      []string{toEmail},
		Subject: subject,
		Html:    body.String(),
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
