package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"otplink/internal/apperrors"
	"otplink/internal/models"
	"otplink/internal/timeutil"
)

// Payload is the exact body POSTed to a configured webhook.
type Payload struct {
	OTP       string `json:"otp"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func PayloadFor(rec *models.OTPRecord) Payload {
	return Payload{
		OTP:       rec.OTP,
		Sender:    rec.Sender,
		Message:   rec.Message,
		Timestamp: timeutil.FormatISO(rec.Timestamp),
	}
}

// TestPayload is what the "test webhook" action sends.
func TestPayload(now time.Time) Payload {
	return Payload{
		OTP:       "123456",
		Sender:    "Test",
		Message:   "This is a test OTP: 123456",
		Timestamp: timeutil.FormatISO(now),
	}
}

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Post sends one request and treats any 2xx as success. Other outcomes are
// returned as DeliveryFailed errors.
func (c *Client) Post(ctx context.Context, url string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return apperrors.Delivery("webhook.encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.Delivery("webhook.request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Delivery("webhook.post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Delivery("webhook.post", fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
