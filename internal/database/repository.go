package database

import (
	"context"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// CallSessionRepository manages per-call dialog state rows.
type CallSessionRepository interface {
	Create(ctx context.Context, sess *models.CallSession) error
	GetByCallRef(ctx context.Context, callRef string) (*models.CallSession, error)
	Update(ctx context.Context, sess *models.CallSession) error
	Archive(ctx context.Context, callRef string) error
	CountActive(ctx context.Context) (int64, error)
	CountByState(ctx context.Context) (map[string]int64, error)
	CountByOutcome(ctx context.Context) (map[string]int64, error)
}

// ConversationTurnRepository manages the append-only turn history.
type ConversationTurnRepository interface {
	// Append inserts a turn. A turn with the same (call_ref, turn_index)
	// as an existing row is silently ignored so replayed webhook
	// deliveries never duplicate history.
	Append(ctx context.Context, turn *models.ConversationTurn) error
	ListByCallRef(ctx context.Context, callRef string) ([]models.ConversationTurn, error)
	CountByCallRef(ctx context.Context, callRef string) (int64, error)
}

// LeadRepository reads and seeds call targets.
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id int64) (*models.Lead, error)
}

// CampaignRepository reads campaign configuration and caches generated scripts.
type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	SetScript(ctx context.Context, id int64, scriptJSON string) error
}

// AudioAssetRepository manages the content-addressed synthesis cache index.
type AudioAssetRepository interface {
	Get(ctx context.Context, hash string) (*models.AudioAsset, error)
	// Put inserts the asset if its hash is not already present. Existing
	// hashes are never overwritten.
	Put(ctx context.Context, asset *models.AudioAsset) error
	DeleteExpired(ctx context.Context) ([]string, error)
}
