package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// elevenVoiceSettings mirrors the ElevenLabs voice_settings payload.
type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// elevenRequest is the POST body for the text-to-speech endpoint.
type elevenRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

// ElevenLabsProvider synthesizes speech through the ElevenLabs HTTP API.
// It is the primary provider.
type ElevenLabsProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelID    string
}

// NewElevenLabsProvider creates the primary synthesis provider.
func NewElevenLabsProvider(apiKey string, timeout time.Duration) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    elevenLabsBaseURL,
		apiKey:     apiKey,
		modelID:    "eleven_multilingual_v2",
	}
}

// Name implements Provider.
func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

// Synthesize returns MP3 audio bytes for the text.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: no api key configured")
	}

	body, err := json.Marshal(elevenRequest{
		Text:    text,
		ModelID: p.modelID,
		// Defaults per the ElevenLabs voice settings guidance.
		VoiceSettings: elevenVoiceSettings{Stability: 0.5, SimilarityBoost: 0.8},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, snippet)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio response")
	}

	return audio, nil
}

var _ Provider = (*ElevenLabsProvider)(nil)
