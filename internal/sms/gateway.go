package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"otplink/internal/models"
	"otplink/internal/timeutil"
)

// gatewayMessage is one entry of the gateway's list response.
type gatewayMessage struct {
	Address string `json:"address"`
	Body    string `json:"body"`
	Date    int64  `json:"date"` // unix millis
}

// GatewaySource polls a remote SMS gateway over HTTP:
//
//	GET <url>?since=<unix ms>  ->  [{"address": "...", "body": "...", "date": 1714550400000}]
type GatewaySource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewGatewaySource(baseURL, token string, timeout time.Duration) *GatewaySource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewaySource{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *GatewaySource) ListSince(ctx context.Context, since time.Time) ([]models.SMSMessage, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("since", strconv.FormatInt(timeutil.Millis(since).UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var raw []gatewayMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	out := make([]models.SMSMessage, 0, len(raw))
	for _, m := range raw {
		date := timeutil.FromUnixMillis(m.Date)
		// the gateway filter is advisory
		if !date.After(since) {
			continue
		}
		out = append(out, models.SMSMessage{Sender: m.Address, Body: m.Body, Date: date})
	}
	return out, nil
}
