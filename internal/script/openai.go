package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

const scriptSystemPrompt = `You write concise telemarketing call scripts.
Respond with a JSON object whose keys are exactly: introduction, questions,
value_proposition, objection_handling, closing. Each value is the text the
agent speaks for that part of the call, two sentences at most, in the
requested language. No markdown, JSON only.`

// OpenAIConfig configures the live script generator.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// OpenAIProvider generates campaign scripts with a chat completion. Calls
// are bounded by the collaborator timeout and guarded by a circuit breaker;
// any failure falls back to the static template so the call keeps moving.
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker
	fallback *StaticProvider
	logger   *slog.Logger
}

// NewOpenAIProvider creates a live script generator.
func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "script_generator",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("script generator breaker state change",
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
		fallback: NewStaticProvider(),
		logger:   logger.With("subsystem", "script_generator"),
	}
}

// Generate asks the model for a slot-structured script. On breaker-open,
// timeout, transport failure, or unparseable output it returns the static
// template and no error: script generation is best-effort by contract.
func (p *OpenAIProvider) Generate(ctx context.Context, campaign *models.Campaign, lead *models.Lead) (*Template, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.breaker.Execute(func() (any, error) {
		return p.generate(ctx, campaign, lead)
	})
	if err != nil {
		p.logger.Warn("script generation failed, using static template",
			"campaign_id", campaignID(campaign),
			"error", err,
		)
		return p.fallback.Generate(ctx, campaign, lead)
	}

	return result.(*Template), nil
}

func (p *OpenAIProvider) generate(ctx context.Context, campaign *models.Campaign, lead *models.Lead) (*Template, error) {
	lang := "en"
	if campaign != nil && campaign.Language != "" {
		lang = campaign.Language
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Language: %s\n", lang)
	if campaign != nil {
		fmt.Fprintf(&sb, "Campaign: %s\nGoal: %s\n", campaign.Name, campaign.Goal)
	}
	if lead != nil && lead.Name != "" {
		fmt.Fprintf(&sb, "Lead name: %s\n", lead.Name)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scriptSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("script completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("script completion: empty response")
	}

	var slots map[Slot]string
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &slots); err != nil {
		return nil, fmt.Errorf("parsing script completion: %w", err)
	}

	// Require the slots that terminate a call; the rest fall back per-slot.
	if strings.TrimSpace(slots[SlotIntroduction]) == "" || strings.TrimSpace(slots[SlotClosing]) == "" {
		return nil, fmt.Errorf("script completion missing required slots")
	}

	return &Template{Language: lang, Slots: slots}, nil
}

// BreakerState exposes the breaker state for metrics.
func (p *OpenAIProvider) BreakerState() string {
	return p.breaker.State().String()
}

func campaignID(c *models.Campaign) int64 {
	if c == nil {
		return 0
	}
	return c.ID
}

var _ Provider = (*OpenAIProvider)(nil)
