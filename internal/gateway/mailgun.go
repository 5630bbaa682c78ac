package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Mailgun sends plain text email through the messages endpoint of a domain.
type Mailgun struct {
	client *resty.Client
	domain string
	apiKey string
	sender string
}

// NewMailgun returns a Mailgun client sending as sender.
func NewMailgun(baseURL, domain, apiKey, sender string, timeout time.Duration) *Mailgun {
	return &Mailgun{
		client: newClient(baseURL, timeout),
		domain: domain,
		apiKey: apiKey,
		sender: sender,
	}
}

// Send delivers a message and returns the id Mailgun assigned to it.
func (m *Mailgun) Send(ctx context.Context, to, subject, text string) (string, error) {
	if m.apiKey == "" || m.domain == "" || m.sender == "" {
		return "", fmt.Errorf("mailgun: %w", ErrNotConfigured)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBasicAuth("api", m.apiKey).
		SetPathParam("domain", m.domain).
		SetFormData(map[string]string{
			"from":    m.sender,
			"to":      to,
			"subject": subject,
			"text":    text,
		}).
		Post("/v3/{domain}/messages")
	if err != nil {
		return "", fmt.Errorf("in internal/gateway/mailgun.go/Send(): error while `Post()` calling: %w", err)
	}

	if err := checkResponse(resp, "message"); err != nil {
		return "", fmt.Errorf("mailgun: %w", err)
	}

	return gjson.GetBytes(resp.Body(), "id").String(), nil
}
