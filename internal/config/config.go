package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration for the call engine.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir   string
	HTTPPort  int
	PublicURL string // externally reachable base URL for webhook and audio links
	LogLevel  string
	LogFormat string // log output format: "text" or "json"

	// Carrier (telephony provider).
	CarrierProvider  string // "twilio" or "mock"
	TwilioAccountSID string
	TwilioAuthToken  string // also the webhook signature secret
	TwilioFromNumber string

	// Speech synthesis.
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	MaxChunkChars     int // carrier playable-asset bound, expressed in prompt characters

	// Script generation and OpenAI fallback synthesis.
	ScriptProvider string // "static" or "openai"
	OpenAIAPIKey   string
	OpenAIBaseURL  string

	// Emotion classification service.
	EmotionServiceURL string

	// Dialog ceilings. Never silently unbounded.
	MinGatherConfidence float64
	MaxGatherRetries    int
	MaxTurns            int

	// Collaborator and handler deadlines.
	CollaboratorTimeout time.Duration // per call to synthesis/emotion/script services
	HandlerBudget       time.Duration // full webhook event-to-response budget

	// Circuit breaker for the emotion and script adapters.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// Signed audio URL serving.
	AudioTokenSecret string // hex-encoded 32-byte HMAC key for audio URL signing
	AudioTokenTTL    time.Duration
}

// defaults
const (
	defaultDataDir             = "./data"
	defaultHTTPPort            = 8080
	defaultPublicURL           = "http://localhost:8080"
	defaultLogLevel            = "info"
	defaultLogFormat           = "text"
	defaultCarrierProvider     = "mock"
	defaultScriptProvider      = "static"
	defaultVoiceID             = "21m00Tcm4TlvDq8ikWAM" // ElevenLabs "Rachel"
	defaultMaxChunkChars       = 500
	defaultMinGatherConfidence = 0.5
	defaultMaxGatherRetries    = 3
	defaultMaxTurns            = 20
	defaultCollaboratorTimeout = 2 * time.Second
	defaultHandlerBudget       = 4 * time.Second
	defaultBreakerFailures     = 5
	defaultBreakerCooldown     = 30 * time.Second
	defaultAudioTokenTTL       = time.Hour
)

// envPrefix is the prefix for all call engine environment variables.
const envPrefix = "CALLENGINE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("callengine", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for database and synthesized audio")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.PublicURL, "public-url", defaultPublicURL, "externally reachable base URL used in webhook and audio links")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	fs.StringVar(&cfg.CarrierProvider, "carrier", defaultCarrierProvider, "telephony carrier (twilio, mock)")
	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "Twilio account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token, also used to verify webhook signatures")
	fs.StringVar(&cfg.TwilioFromNumber, "twilio-from", "", "caller ID number for outbound calls")

	fs.StringVar(&cfg.ElevenLabsAPIKey, "elevenlabs-api-key", "", "ElevenLabs API key for primary speech synthesis")
	fs.StringVar(&cfg.ElevenLabsVoiceID, "elevenlabs-voice", defaultVoiceID, "ElevenLabs voice ID")
	fs.IntVar(&cfg.MaxChunkChars, "max-chunk-chars", defaultMaxChunkChars, "maximum prompt characters per playable audio asset")

	fs.StringVar(&cfg.ScriptProvider, "script-provider", defaultScriptProvider, "campaign script source (static, openai)")
	fs.StringVar(&cfg.OpenAIAPIKey, "openai-api-key", "", "OpenAI API key for script generation and fallback synthesis")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", "", "override OpenAI API base URL")

	fs.StringVar(&cfg.EmotionServiceURL, "emotion-service-url", "", "base URL of the emotion classification service (empty disables classification)")

	fs.Float64Var(&cfg.MinGatherConfidence, "min-gather-confidence", defaultMinGatherConfidence, "minimum speech recognition confidence to accept a gather result")
	fs.IntVar(&cfg.MaxGatherRetries, "max-gather-retries", defaultMaxGatherRetries, "re-prompts allowed before ending the call with no response")
	fs.IntVar(&cfg.MaxTurns, "max-turns", defaultMaxTurns, "maximum conversation turns before forcing the closing slot")

	fs.DurationVar(&cfg.CollaboratorTimeout, "collaborator-timeout", defaultCollaboratorTimeout, "timeout per synthesis/emotion/script service call")
	fs.DurationVar(&cfg.HandlerBudget, "handler-budget", defaultHandlerBudget, "total webhook event-to-response deadline")

	var breakerFailures int
	fs.IntVar(&breakerFailures, "breaker-failures", defaultBreakerFailures, "consecutive adapter failures before the circuit breaker opens")
	fs.DurationVar(&cfg.BreakerCooldown, "breaker-cooldown", defaultBreakerCooldown, "how long an open circuit breaker short-circuits to fallback")

	fs.StringVar(&cfg.AudioTokenSecret, "audio-token-secret", "", "hex-encoded 32-byte key for signing audio asset URLs (auto-generated if empty)")
	fs.DurationVar(&cfg.AudioTokenTTL, "audio-token-ttl", defaultAudioTokenTTL, "lifetime of signed audio asset URLs")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs)
	cfg.BreakerFailures = uint32(breakerFailures)

	if cfg.AudioTokenSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating audio token secret: %w", err)
		}
		cfg.AudioTokenSecret = hex.EncodeToString(key)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults. Flag "max-turns" maps to
// CALLENGINE_MAX_TURNS and so on.
func applyEnvOverrides(fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		envVar := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			return
		}
		if err := fs.Set(f.Name, val); err != nil {
			slog.Warn("ignoring invalid environment override",
				"env", envVar,
				"value", val,
				"error", err,
			)
		}
	})
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public-url must start with http:// or https://, got %q", c.PublicURL)
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	switch c.CarrierProvider {
	case "mock":
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
			return fmt.Errorf("carrier=twilio requires twilio-account-sid, twilio-auth-token, and twilio-from")
		}
	default:
		return fmt.Errorf("carrier must be one of twilio, mock; got %q", c.CarrierProvider)
	}

	switch c.ScriptProvider {
	case "static":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("script-provider=openai requires openai-api-key")
		}
	default:
		return fmt.Errorf("script-provider must be one of static, openai; got %q", c.ScriptProvider)
	}

	if c.MinGatherConfidence < 0 || c.MinGatherConfidence >= 1 {
		return fmt.Errorf("min-gather-confidence must be in [0, 1), got %v", c.MinGatherConfidence)
	}
	if c.MaxGatherRetries < 1 {
		return fmt.Errorf("max-gather-retries must be at least 1, got %d", c.MaxGatherRetries)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max-turns must be at least 1, got %d", c.MaxTurns)
	}
	if c.MaxChunkChars < 50 {
		return fmt.Errorf("max-chunk-chars must be at least 50, got %d", c.MaxChunkChars)
	}
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("collaborator-timeout must be positive, got %v", c.CollaboratorTimeout)
	}
	if c.HandlerBudget <= c.CollaboratorTimeout {
		return fmt.Errorf("handler-budget (%v) must exceed collaborator-timeout (%v)", c.HandlerBudget, c.CollaboratorTimeout)
	}
	if c.BreakerFailures < 1 {
		return fmt.Errorf("breaker-failures must be at least 1, got %d", c.BreakerFailures)
	}

	if c.AudioTokenSecret != "" {
		if _, err := c.AudioTokenSecretBytes(); err != nil {
			return err
		}
	}

	return nil
}

// AudioTokenSecretBytes returns the decoded 32-byte audio URL signing key,
// or nil if no key is configured.
func (c *Config) AudioTokenSecretBytes() ([]byte, error) {
	if c.AudioTokenSecret == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.AudioTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding audio token secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("audio token secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WebhookURL returns the absolute URL for a webhook path.
func (c *Config) WebhookURL(path string) string {
	return c.PublicURL + path
}
