package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"net/smtp"

	"go.uber.org/zap"

	"natours-api/internal/config"
)

var emailTemplates = template.Must(template.New("email").Parse(`
{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background-color: #55c57a; color: white; text-decoration: none; border-radius: 5px; }
        .footer { margin-top: 30px; font-size: 12px; color: #777; }
    </style>
</head>
<body>
    <p>Hi {{.FirstName}},</p>
    {{template "body" .}}
    <div class="footer">Natours Inc, 123 Nowhere Road, San Francisco CA 99999</div>
</body>
</html>{{end}}

{{define "welcome"}}{{template "layout" .}}{{end}}
{{define "passwordReset"}}{{template "layout" .}}{{end}}
`))

var emailBodies = map[string]string{
	"welcome": `{{define "body"}}
    <p>Welcome to Natours, we're glad to have you 🎉🙏</p>
    <p>We're all a big family here, so make sure to upload your user photo so we get to know you a bit better!</p>
    <p><a class="button" href="{{.URL}}">Upload user photo</a></p>
    <p>If you need any help with booking your next tour, please don't hesitate to contact me!</p>
{{end}}`,
	"passwordReset": `{{define "body"}}
    <p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to the link below.</p>
    <p><a class="button" href="{{.URL}}">Reset your password</a></p>
    <p>The link is valid for 10 minutes. If you didn't forget your password, please ignore this email!</p>
{{end}}`,
}

type emailData struct {
	FirstName string
	URL       string
}

// EmailService sends transactional email over SMTP
type EmailService struct {
	cfg config.EmailConfig
	log *zap.Logger
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig, log *zap.Logger) *EmailService {
	return &EmailService{
		cfg: cfg,
		log: log,
	}
}

// SendWelcome greets a newly registered user
func (s *EmailService) SendWelcome(ctx context.Context, to Recipient, url string) error {
	return s.send(ctx, to, "welcome", "Welcome to the Natours Family!", url)
}

// SendPasswordReset sends the single-use reset link
func (s *EmailService) SendPasswordReset(ctx context.Context, to Recipient, resetURL string) error {
	return s.send(ctx, to, "passwordReset", "Your password reset token (valid for only 10 minutes)", resetURL)
}

func (s *EmailService) send(ctx context.Context, to Recipient, name, subject, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := render(name, emailData{FirstName: to.Name, URL: url})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(to.Email, subject, body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.log.Info("email sent", zap.String("template", name), zap.String("email", to.Email))
	return nil
}

func render(name string, data emailData) (string, error) {
	tmpl, err := emailTemplates.Clone()
	if err != nil {
		return "", err
	}
	if _, err := tmpl.Parse(emailBodies[name]); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.cfg.From, to, subject, body,
	))

	envelopeFrom := s.cfg.From
	if addr, err := mail.ParseAddress(s.cfg.From); err == nil {
		envelopeFrom = addr.Address
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	return smtp.SendMail(addr, auth, envelopeFrom, []string{to}, msg)
}
