package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGrid delivers through the v3 mail send API.
type SendGrid struct {
	host   string
	apiKey string
}

func NewSendGrid(baseURL, apiKey string) *SendGrid {
	return &SendGrid{host: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (s *SendGrid) Name() string { return ProviderSendGrid }

func (s *SendGrid) Deliver(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(mail.NewEmail("", msg.From), msg.Subject, mail.NewEmail("", msg.To), "", msg.HTML)

	// sendgrid.Client stores the body on its request, so each delivery gets its own.
	req := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	req.Method = rest.Post
	client := &sendgrid.Client{Request: req}

	resp, err := client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return &ProviderError{Provider: ProviderSendGrid, Status: resp.StatusCode, Body: snippet(resp.Body)}
	}
	return nil
}
