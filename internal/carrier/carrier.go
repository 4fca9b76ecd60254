// Package carrier places outbound calls through the telephony provider's
// REST API. A mock client backs local development and tests.
package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client places an outbound call and returns the carrier's call reference.
type Client interface {
	PlaceCall(ctx context.Context, to, answerURL, statusURL string) (string, error)
}

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioClient places calls through the Twilio REST API.
type TwilioClient struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	logger     *slog.Logger
}

// NewTwilioClient builds a carrier client for the given account.
func NewTwilioClient(accountSID, authToken, from string, logger *slog.Logger) *TwilioClient {
	return &TwilioClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    twilioAPIBase,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		logger:     logger.With(slog.String("component", "carrier")),
	}
}

// PlaceCall starts an outbound call that fetches answerURL when answered
// and posts lifecycle updates to statusURL.
func (c *TwilioClient) PlaceCall(ctx context.Context, to, answerURL, statusURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Url", answerURL)
	form.Set("Method", "POST")
	form.Set("StatusCallback", statusURL)
	form.Set("StatusCallbackMethod", "POST")
	for _, ev := range []string{"completed", "busy", "failed", "no-answer", "canceled"} {
		form.Add("StatusCallbackEvent", ev)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("placing call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("carrier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding call response: %w", err)
	}
	if parsed.SID == "" {
		return "", fmt.Errorf("carrier response missing call sid")
	}
	c.logger.Info("call placed", slog.String("call_ref", parsed.SID), slog.String("to", to))
	return parsed.SID, nil
}

// MockClient fabricates call references without touching the network.
type MockClient struct {
	logger *slog.Logger
}

// NewMockClient builds the development carrier.
func NewMockClient(logger *slog.Logger) *MockClient {
	return &MockClient{logger: logger.With(slog.String("component", "carrier"))}
}

// PlaceCall returns a synthetic call reference.
func (c *MockClient) PlaceCall(_ context.Context, to, _, _ string) (string, error) {
	ref := "MC" + strings.ReplaceAll(uuid.NewString(), "-", "")
	c.logger.Info("mock call placed", slog.String("call_ref", ref), slog.String("to", to))
	return ref, nil
}
