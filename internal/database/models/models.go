// Package models defines the database entities for the call engine.
package models

import "time"

// Call session states. A session starts in StateInitiated and ends in
// StateCompleted or StateFailed; terminal sessions are archived, never
// deleted.
const (
	StateInitiated    = "initiated"
	StateGreeting     = "greeting"
	StateGathering    = "gathering"
	StateProcessing   = "processing"
	StateTransferring = "transferring"
	StateCompleted    = "completed"
	StateFailed       = "failed"
)

// TerminalState reports whether a session state is terminal.
func TerminalState(state string) bool {
	return state == StateCompleted || state == StateFailed
}

// CallSession is the per-call dialog state, keyed by the carrier-assigned
// call reference. Exactly one session exists per call reference.
type CallSession struct {
	ID            int64
	CallRef       string
	LeadID        int64
	CampaignID    int64
	State         string
	Language      string
	TurnIndex     int
	GatherRetries int
	SynthFailures int
	// PendingSlots is the JSON-encoded ordered list of script slots not
	// yet spoken. Emotion branching reorders it; the dialog engine owns it.
	PendingSlots string
	Recording    bool
	RecordingURL string
	Outcome      string
	Archived     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationTurn is an immutable record of one exchange. Turns are
// append-only and unique per (call_ref, turn_index), which is what makes
// replayed webhook deliveries idempotent.
type ConversationTurn struct {
	ID                string // xid
	CallRef           string
	TurnIndex         int
	Prompt            string
	Speech            string
	Emotion           string
	EmotionConfidence float64
	Action            string
	CreatedAt         time.Time
}

// Lead is a call target. The full lead CRUD surface lives elsewhere; the
// engine only reads leads by ID and creates them for development seeding.
type Lead struct {
	ID        int64
	Name      string
	Phone     string
	Language  string
	CreatedAt time.Time
}

// Campaign holds per-campaign dialog configuration. ScriptJSON caches the
// generated (or static) script template; zero-valued ceilings fall back to
// the engine-wide configured defaults.
type Campaign struct {
	ID             int64
	Name           string
	Goal           string
	Language       string
	MaxTurns       int
	TransferNumber string
	ScriptJSON     string
	CreatedAt      time.Time
}

// AudioAsset is a content-addressed synthesized audio artifact. The hash
// covers (text, voice, language); an existing hash always maps to the same
// audio and is never overwritten.
type AudioAsset struct {
	Hash      string
	Path      string
	Provider  string
	ByteLen   int64
	CreatedAt time.Time
	ExpiresAt time.Time
}
