package synth

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider is the secondary synthesis path, used when the primary
// provider fails or times out. It reuses the same OpenAI account as the
// script generator.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates the secondary synthesis provider.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Synthesize returns MP3 audio bytes for the text. The voice parameter is
// an ElevenLabs voice ID and does not map onto OpenAI voices, so a fixed
// fallback voice is used.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.VoiceAlloy,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai speech: reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai speech: empty audio response")
	}

	return audio, nil
}

var _ Provider = (*OpenAIProvider)(nil)
