package sendgrid

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailService delivers transactional mail through the SendGrid v3 API.
type EmailService interface {
	Send(ctx context.Context, msg *models.EmailMessage) error
}

type Option func(*emailService)

// WithSandbox asks SendGrid to accept and validate messages without
// delivering them. Used outside production.
func WithSandbox(enabled bool) Option {
	return func(s *emailService) { s.sandbox = enabled }
}

// WithBaseURL sends requests to a different host, such as a local stub.
func WithBaseURL(url string) Option {
	return func(s *emailService) { s.client.Request.BaseURL = url }
}

type emailService struct {
	client  *sendgrid.Client
	from    *mail.Email
	sandbox bool
}

func NewEmailService(apiKey, fromEmail, fromName string, opts ...Option) EmailService {
	s := &emailService{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *emailService) build(msg *models.EmailMessage) *mail.SGMailV3 {
	recipient := mail.NewPersonalization()
	recipient.AddTos(mail.NewEmail(msg.ToName, msg.To))
	recipient.Subject = msg.Subject
	if msg.OrderID != "" {
		recipient.SetCustomArg("order_id", msg.OrderID)
	}

	m := mail.NewV3Mail().SetFrom(s.from)
	m.AddPersonalizations(recipient)

	// SendGrid requires text/plain to precede text/html.
	m.AddContent(mail.NewContent("text/plain", msg.Content))
	if msg.HTMLContent != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTMLContent))
	}

	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	if s.sandbox {
		m.SetMailSettings(mail.NewMailSettings().SetSandboxMode(mail.NewSetting(true)))
	}

	return m
}

// Send returns an error for transport failures and for any non-2xx reply.
// The reply body is included since SendGrid puts field errors there.
func (s *emailService) Send(ctx context.Context, msg *models.EmailMessage) error {
	resp, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid rejected message to %s, status code: %d: %s", msg.To, resp.StatusCode, resp.Body)
	}

	return nil
}
