package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// campaignRepo implements CampaignRepository.
type campaignRepo struct {
	db *DB
}

// NewCampaignRepository creates a new CampaignRepository.
func NewCampaignRepository(db *DB) CampaignRepository {
	return &campaignRepo{db: db}
}

// Create inserts a new campaign.
func (r *campaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO campaigns (name, goal, language, max_turns, transfer_number, script_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Goal, c.Language, c.MaxTurns, c.TransferNumber, c.ScriptJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting campaign: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByID returns a campaign by ID, or nil if none exists.
func (r *campaignRepo) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	var c models.Campaign
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, goal, language, max_turns, transfer_number, script_json, created_at
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Goal, &c.Language, &c.MaxTurns, &c.TransferNumber,
		&c.ScriptJSON, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning campaign: %w", err)
	}
	return &c, nil
}

// SetScript caches a generated script template on the campaign.
func (r *campaignRepo) SetScript(ctx context.Context, id int64, scriptJSON string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET script_json = ? WHERE id = ?`, scriptJSON, id,
	)
	if err != nil {
		return fmt.Errorf("updating campaign script: %w", err)
	}
	return nil
}
