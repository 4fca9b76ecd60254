// Package dialog drives the conversation state machine. Each carrier
// event is applied to the durable call session under the session store's
// per-call lock and produces a single delivery action describing what the
// callee should hear next.
package dialog

import (
	"context"
	"log/slog"

	"github.com/dhruv465/Project-Call-sub007/internal/database"
	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
	"github.com/dhruv465/Project-Call-sub007/internal/emotion"
	"github.com/dhruv465/Project-Call-sub007/internal/script"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
)

// Kind enumerates delivery action types.
type Kind string

const (
	// KindSpeak plays rendered audio, optionally followed by a gather.
	KindSpeak Kind = "speak"
	// KindGather listens without speaking first, used for clarification
	// re-prompts where the prompt rides inside the gather.
	KindGather Kind = "gather"
	// KindTransfer dials the campaign's transfer number.
	KindTransfer Kind = "transfer"
	// KindHangup ends the call.
	KindHangup Kind = "hangup"
	// KindNone acknowledges the event without returning any verbs.
	KindNone Kind = "none"
)

// Call outcomes recorded on terminal sessions.
const (
	OutcomeCompleted   = "completed"
	OutcomeOptOut      = "opt_out"
	OutcomeNoResponse  = "no_response"
	OutcomeTransferred = "transferred"
	OutcomeFailed      = "failed"
)

// Action is the engine's answer to a carrier event. The delivery renderer
// turns it into call markup without consulting any other state.
type Action struct {
	Kind        Kind
	Prompt      string
	Assets      []models.AudioAsset
	Direct      bool
	GatherAfter bool
	Language    string
	TransferTo  string
}

// Synthesizer renders prompt text into playable audio chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) ([]models.AudioAsset, error)
}

// Options carry the conversation ceilings and the synthesis voice.
type Options struct {
	MinGatherConfidence float64
	MaxGatherRetries    int
	MaxTurns            int
	Voice               string
}

// Engine applies carrier events to call sessions.
type Engine struct {
	store     *session.Store
	leads     database.LeadRepository
	campaigns database.CampaignRepository
	scripts   script.Provider
	emotions  emotion.Classifier
	synth     Synthesizer
	opts      Options
	logger    *slog.Logger
}

// NewEngine wires the conversation engine.
func NewEngine(
	store *session.Store,
	leads database.LeadRepository,
	campaigns database.CampaignRepository,
	scripts script.Provider,
	emotions emotion.Classifier,
	synth Synthesizer,
	opts Options,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:     store,
		leads:     leads,
		campaigns: campaigns,
		scripts:   scripts,
		emotions:  emotions,
		synth:     synth,
		opts:      opts,
		logger:    logger.With(slog.String("component", "dialog")),
	}
}
