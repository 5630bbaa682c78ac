package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// MaxSMSLength is the longest body Twilio accepts.
const MaxSMSLength = 1600

// ErrInvalidSMS is returned for an empty or oversized message or a phone
// number that is not ten digits.
var ErrInvalidSMS = errors.New("invalid phone number or message")

// Twilio sends SMS messages to US phone numbers.
type Twilio struct {
	client     *resty.Client
	accountSID string
	authToken  string
	fromPhone  string
}

// NewTwilio returns a Twilio client sending from fromPhone.
func NewTwilio(baseURL, accountSID, authToken, fromPhone string, timeout time.Duration) *Twilio {
	return &Twilio{
		client:     newClient(baseURL, timeout),
		accountSID: accountSID,
		authToken:  authToken,
		fromPhone:  fromPhone,
	}
}

// SendSMS texts msg to a ten digit phone number and returns the message sid.
func (t *Twilio) SendSMS(ctx context.Context, phone, msg string) (string, error) {
	phone = strings.TrimSpace(phone)
	msg = strings.TrimSpace(msg)
	if len(phone) != 10 || msg == "" || len(msg) > MaxSMSLength {
		return "", ErrInvalidSMS
	}
	if t.accountSID == "" || t.authToken == "" {
		return "", fmt.Errorf("twilio: %w", ErrNotConfigured)
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBasicAuth(t.accountSID, t.authToken).
		SetPathParam("sid", t.accountSID).
		SetFormData(map[string]string{
			"From": t.fromPhone,
			"To":   "+1" + phone,
			"Body": msg,
		}).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return "", fmt.Errorf("in internal/gateway/twilio.go/SendSMS(): error while `Post()` calling: %w", err)
	}

	if err := checkResponse(resp, "message"); err != nil {
		return "", fmt.Errorf("twilio: %w", err)
	}

	return gjson.GetBytes(resp.Body(), "sid").String(), nil
}
