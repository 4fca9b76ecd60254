package script

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// completionServer serves a canned chat completion whose message content is
// the given JSON script.
func completionServer(t *testing.T, scriptJSON string) *httptest.Server {
	t.Helper()
	content, err := json.Marshal(scriptJSON)
	if err != nil {
		t.Fatalf("encoding script content: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":`+string(content)+`}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerateParsesScript(t *testing.T) {
	srv := completionServer(t, `{
		"introduction": "Hi, this is a call about fiber.",
		"questions": "What matters to you?",
		"value_proposition": "You save money.",
		"objection_handling": "No obligation at all.",
		"closing": "Thanks, goodbye."
	}`)

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, testLogger())
	tmpl, err := p.Generate(context.Background(), &models.Campaign{Name: "Fiber", Language: "en"}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := tmpl.Prompt(SlotIntroduction); got != "Hi, this is a call about fiber." {
		t.Errorf("introduction = %q", got)
	}
	if got := tmpl.Prompt(SlotClosing); got != "Thanks, goodbye." {
		t.Errorf("closing = %q", got)
	}
	if tmpl.Language != "en" {
		t.Errorf("Language = %q", tmpl.Language)
	}
}

func TestOpenAIGenerateFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, testLogger())
	campaign := &models.Campaign{Name: "Acme Fiber", Language: "en"}
	tmpl, err := p.Generate(context.Background(), campaign, nil)
	if err != nil {
		t.Fatalf("Generate must absorb failures: %v", err)
	}
	// The static fallback still speaks a full campaign-specific script.
	for _, slot := range DefaultOrder {
		if tmpl.Prompt(slot) == "" {
			t.Errorf("fallback slot %q is empty", slot)
		}
	}
}

func TestOpenAIGenerateFallsBackOnMissingSlots(t *testing.T) {
	srv := completionServer(t, `{"questions": "Only a question, no intro or closing."}`)

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, testLogger())
	tmpl, err := p.Generate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if tmpl.Prompt(SlotIntroduction) != staticSlots[SlotIntroduction] {
		t.Error("incomplete completion must fall back to the static script")
	}
}

func TestOpenAIBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:          "k",
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, testLogger())

	for i := 0; i < 3; i++ {
		if _, err := p.Generate(context.Background(), nil, nil); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if got := p.BreakerState(); got != "open" {
		t.Errorf("breaker state = %q, want open", got)
	}
}
