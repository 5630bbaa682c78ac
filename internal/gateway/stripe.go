package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Stripe creates card charges through the /v1/charges endpoint.
type Stripe struct {
	client    *resty.Client
	secretKey string
	source    string
	currency  string
}

// NewStripe returns a Stripe client. source is the payment source token and
// currency the three letter ISO code charged in.
func NewStripe(baseURL, secretKey, source, currency string, timeout time.Duration) *Stripe {
	return &Stripe{
		client:    newClient(baseURL, timeout),
		secretKey: secretKey,
		source:    source,
		currency:  currency,
	}
}

// Charge bills amount (in the smallest currency unit) and returns the
// charge id.
func (s *Stripe) Charge(ctx context.Context, amount int64, description string) (string, error) {
	if s.secretKey == "" {
		return "", fmt.Errorf("stripe: %w", ErrNotConfigured)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(s.secretKey, "").
		SetFormData(map[string]string{
			"amount":      strconv.FormatInt(amount, 10),
			"currency":    s.currency,
			"source":      s.source,
			"description": description,
		}).
		Post("/v1/charges")
	if err != nil {
		return "", fmt.Errorf("in internal/gateway/stripe.go/Charge(): error while `Post()` calling: %w", err)
	}

	if err := checkResponse(resp, "error.message"); err != nil {
		return "", fmt.Errorf("stripe: %w", err)
	}

	return gjson.GetBytes(resp.Body(), "id").String(), nil
}
