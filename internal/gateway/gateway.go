// Package gateway talks to the third-party HTTP APIs the services depend on:
// Stripe for card charges, Mailgun for receipts and Twilio for SMS alerts.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ErrUnexpectedStatus wraps every non-2xx answer of a gateway.
var ErrUnexpectedStatus = errors.New("unexpected gateway response status")

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("gateway is not configured")

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

func checkResponse(resp *resty.Response, errorMessagePath string) error {
	if resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated {
		return nil
	}

	message := gjson.GetBytes(resp.Body(), errorMessagePath).String()
	if message == "" {
		message = resp.Status()
	}

	return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode(), message)
}
