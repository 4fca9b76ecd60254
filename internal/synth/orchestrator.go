// Package synth turns prompt text into playable, content-addressed audio
// assets with provider fallback, sentence-boundary chunking, and a durable
// cache shared across calls.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// ErrSynthesisUnavailable is returned when every provider failed for at
// least one chunk. The dialog engine responds with a direct-speech
// directive instead of pre-rendered audio; the call never aborts on this.
var ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

// Provider synthesizes one bounded chunk of text into audio bytes.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)
}

// Orchestrator coordinates cache lookup, provider fallback, and chunking.
type Orchestrator struct {
	providers []Provider // tried in order
	cache     *Cache
	chunker   *Chunker
	timeout   time.Duration // per provider attempt
	logger    *slog.Logger
}

// NewOrchestrator creates a synthesis orchestrator. Providers are tried in
// the order given; at least one must be supplied.
func NewOrchestrator(providers []Provider, cache *Cache, chunker *Chunker, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		cache:     cache,
		chunker:   chunker,
		timeout:   timeout,
		logger:    logger.With("subsystem", "synth"),
	}
}

// Synthesize returns ordered, playable assets covering the whole text.
// Text longer than the playable bound is split into chunks first, so each
// asset stays within the carrier's limit and each chunk caches
// independently. Any chunk that cannot be produced by any provider fails
// the whole call with ErrSynthesisUnavailable.
func (o *Orchestrator) Synthesize(ctx context.Context, text, language, voice string) ([]models.AudioAsset, error) {
	chunks := o.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("synthesize: empty text")
	}

	assets := make([]models.AudioAsset, 0, len(chunks))
	for i, chunk := range chunks {
		asset, err := o.synthesizeChunk(ctx, chunk, language, voice)
		if err != nil {
			o.logger.Warn("chunk synthesis failed",
				"chunk", i+1,
				"chunks", len(chunks),
				"error", err,
			)
			return nil, err
		}
		assets = append(assets, *asset)
	}

	return assets, nil
}

func (o *Orchestrator) synthesizeChunk(ctx context.Context, text, language, voice string) (*models.AudioAsset, error) {
	hash := ContentHash(text, voice, language)

	cached, err := o.cache.Get(ctx, hash)
	if err != nil {
		o.logger.Warn("asset cache lookup failed", "hash", hash, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	var lastErr error
	for _, p := range o.providers {
		audio, err := o.tryProvider(ctx, p, text, language, voice)
		if err != nil {
			lastErr = err
			o.logger.Warn("synthesis provider failed",
				"provider", p.Name(),
				"error", err,
			)
			continue
		}

		asset, err := o.cache.Put(ctx, hash, p.Name(), audio)
		if err != nil {
			return nil, fmt.Errorf("caching synthesized audio: %w", err)
		}
		return asset, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, fmt.Errorf("%w: %v", ErrSynthesisUnavailable, lastErr)
}

func (o *Orchestrator) tryProvider(ctx context.Context, p Provider, text, language, voice string) ([]byte, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return p.Synthesize(ctx, text, language, voice)
}
