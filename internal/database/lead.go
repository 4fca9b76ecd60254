package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// leadRepo implements LeadRepository.
type leadRepo struct {
	db *DB
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(db *DB) LeadRepository {
	return &leadRepo{db: db}
}

// Create inserts a new lead.
func (r *leadRepo) Create(ctx context.Context, lead *models.Lead) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO leads (name, phone, language) VALUES (?, ?, ?)`,
		lead.Name, lead.Phone, lead.Language,
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	lead.ID = id
	return nil
}

// GetByID returns a lead by ID, or nil if none exists.
func (r *leadRepo) GetByID(ctx context.Context, id int64) (*models.Lead, error) {
	var l models.Lead
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, phone, language, created_at FROM leads WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Phone, &l.Language, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning lead: %w", err)
	}
	return &l, nil
}
