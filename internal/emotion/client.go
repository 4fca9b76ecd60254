// Package emotion calls the external emotion classification service. The
// adapter is best-effort: timeouts, transport failures, and an open circuit
// breaker all degrade to a neutral zero-confidence signal that the dialog
// engine treats as "no signal".
package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Labels the classifier can return. The neutral label doubles as the
// fallback when no signal is available.
const (
	LabelNeutral = "neutral"
)

// Negative labels pull the objection-handling slot forward; positive labels
// pull the value proposition forward. Everything else leaves the script
// order alone.
var (
	negativeLabels = map[string]bool{
		"anger": true, "sadness": true, "fear": true, "disgust": true,
	}
	positiveLabels = map[string]bool{
		"happiness": true, "love": true, "desire": true, "interested": true,
	}
)

// Signal is the transient classification result attached to a turn.
type Signal struct {
	Label      string
	Confidence float64
	Latency    time.Duration
}

// HasSignal reports whether the dialog engine may branch on this signal.
// Zero confidence means no signal regardless of label.
func (s Signal) HasSignal() bool {
	return s.Confidence > 0 && s.Label != ""
}

// Negative reports a branch-worthy negative emotion.
func (s Signal) Negative() bool {
	return s.HasSignal() && negativeLabels[s.Label]
}

// Positive reports a branch-worthy positive emotion.
func (s Signal) Positive() bool {
	return s.HasSignal() && positiveLabels[s.Label]
}

// Neutral is the fallback signal used when the classifier is unavailable.
func Neutral() Signal {
	return Signal{Label: LabelNeutral, Confidence: 0}
}

// Classifier produces an emotion signal for recognized speech.
type Classifier interface {
	Classify(ctx context.Context, text string) Signal
}

// classifyRequest is the payload sent to POST {base}/classify.
type classifyRequest struct {
	Text string `json:"text"`
}

// classifyResponse is the service's result shape.
type classifyResponse struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Config configures the HTTP classifier.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client is an HTTP client for the emotion classification service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an emotion classifier client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	log := logger.With("subsystem", "emotion_client")

	timeout := timeoutOrDefault(cfg.Timeout)

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		timeout:    timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "emotion_classifier",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("emotion classifier breaker state change",
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
		logger: log,
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Classify returns the service's emotion signal for the text, or the
// neutral fallback on any failure. It never returns an error and never
// blocks past the configured timeout.
func (c *Client) Classify(ctx context.Context, text string) Signal {
	if c.baseURL == "" || text == "" {
		return Neutral()
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.classify(ctx, text)
	})
	if err != nil {
		c.logger.Warn("emotion classification failed, using neutral",
			"error", err,
		)
		return Neutral()
	}

	sig := result.(Signal)
	sig.Latency = time.Since(start)
	return sig
}

func (c *Client) classify(ctx context.Context, text string) (Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return Signal{}, fmt.Errorf("emotion: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return Signal{}, fmt.Errorf("emotion: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Signal{}, fmt.Errorf("emotion: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Signal{}, fmt.Errorf("emotion: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Signal{}, fmt.Errorf("emotion: service returned status %d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Signal{}, fmt.Errorf("emotion: decoding response: %w", err)
	}
	if parsed.Emotion == "" {
		return Signal{}, fmt.Errorf("emotion: response missing label")
	}

	return Signal{Label: parsed.Emotion, Confidence: parsed.Confidence}, nil
}

// BreakerState exposes the breaker state for metrics.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

var _ Classifier = (*Client)(nil)
