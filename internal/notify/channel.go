// Package notify delivers rendered notifications through an external email provider.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rfp-studio/engine/pkg/config"
)

const (
	ProviderSendGrid = "sendgrid"
	ProviderMailgun  = "mailgun"
	ProviderSES      = "aws_ses"
)

// Message is a single rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// DeliveryChannel hands a message to one external provider. A nil error means the
// provider acknowledged the message.
type DeliveryChannel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// ProviderError carries a non-success reply from a provider API.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Status, e.Body)
}

// NewChannel builds the channel selected by cfg.EmailProvider.
func NewChannel(ctx context.Context, cfg *config.Config, client *http.Client) (DeliveryChannel, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	switch cfg.EmailProvider {
	case ProviderSendGrid:
		return NewSendGrid(cfg.SendGridBaseURL, cfg.SendGridAPIKey), nil
	case ProviderMailgun:
		return NewMailgun(cfg.MailgunBaseURL, cfg.MailgunDomain, cfg.MailgunAPIKey, client), nil
	case ProviderSES:
		ses, err := NewSES(ctx, SESOptions{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.SESEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			HTTPClient:      client,
		})
		if err != nil {
			return nil, err
		}
		return ses, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

func snippet(s string) string {
	if len(s) > 512 {
		return s[:512]
	}
	return s
}
