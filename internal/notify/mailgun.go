package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
)

// Mailgun delivers through the messages API of one sending domain.
type Mailgun struct {
	mg *mailgun.MailgunImpl
}

// NewMailgun targets baseURL without the API version, e.g. https://api.mailgun.net.
func NewMailgun(baseURL, domain, apiKey string, client *http.Client) *Mailgun {
	mg := mailgun.NewMailgun(domain, apiKey)
	mg.SetAPIBase(strings.TrimRight(baseURL, "/") + "/v3")
	if client != nil {
		mg.SetClient(client)
	}
	return &Mailgun{mg: mg}
}

func (m *Mailgun) Name() string { return ProviderMailgun }

func (m *Mailgun) Deliver(ctx context.Context, msg Message) error {
	message := m.mg.NewMessage(msg.From, msg.Subject, "", msg.To)
	message.SetHtml(msg.HTML)

	if _, _, err := m.mg.Send(ctx, message); err != nil {
		if status := mailgun.GetStatusFromErr(err); status > 0 {
			return &ProviderError{Provider: ProviderMailgun, Status: status, Body: snippet(err.Error())}
		}
		return fmt.Errorf("mailgun: %w", err)
	}
	return nil
}
