package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"

	"clinic-notify/internal/config"
	"clinic-notify/internal/domain"
)

type Service interface {
	SendEscalationEmail(ctx context.Context, toEmail, adminName, staffName string, notif *domain.Notification) error
}

type service struct {
	client *resend.Client
	config *config.Config
	tmpl   *template.Template
}

// escalationTemplate is the only mail this engine sends; kept inline so the
// binary has no template assets to ship.
const escalationTemplate = `
<h2>Unacknowledged critical alert</h2>
<p>Hi {{.AdminName}},</p>
<p>{{.StaffName}} has not acknowledged a critical notification after all retries:</p>
<blockquote>
  <strong>{{.Title}}</strong><br>
  {{.Message}}
</blockquote>
<p>Please follow up. <a href="{{.Link}}">Open in dashboard</a></p>
`

func NewService(cfg *config.Config) Service {
	return &service{
		client: resend.NewClient(cfg.ResendAPIKey),
		config: cfg,
		tmpl:   template.Must(template.New("escalation").Parse(escalationTemplate)),
	}
}

func (s *service) SendEscalationEmail(ctx context.Context, toEmail, adminName, staffName string, notif *domain.Notification) error {
	data := struct {
		AdminName string
		StaffName string
		Title     string
		Message   string
		Link      string
	}{
		AdminName: adminName,
		StaffName: staffName,
		Title:     notif.Title,
		Message:   notif.Message,
		Link:      fmt.Sprintf("%s/notifications/%s", s.config.AppBaseURL, notif.ID),
	}

	var body bytes.Buffer
	if err := s.tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render escalation email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Clinic Alerts <%s>", s.config.FromEmail),
		To:      []string{toEmail},
		Html:    body.String(),
		Subject: "Unacknowledged critical alert",
	}

	_, err := s.client.Emails.Send(params)
	return err
}
