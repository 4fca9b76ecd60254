package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// callSessionRepo implements CallSessionRepository.
type callSessionRepo struct {
	db *DB
}

// NewCallSessionRepository creates a new CallSessionRepository.
func NewCallSessionRepository(db *DB) CallSessionRepository {
	return &callSessionRepo{db: db}
}

const callSessionColumns = `id, call_ref, lead_id, campaign_id, state, language,
	 turn_index, gather_retries, synth_failures, pending_slots,
	 recording, recording_url, outcome, archived, created_at, updated_at`

// Create inserts a new call session row.
func (r *callSessionRepo) Create(ctx context.Context, sess *models.CallSession) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO call_sessions (call_ref, lead_id, campaign_id, state, language,
		 turn_index, gather_retries, synth_failures, pending_slots,
		 recording, recording_url, outcome, archived)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.CallRef, sess.LeadID, sess.CampaignID, sess.State, sess.Language,
		sess.TurnIndex, sess.GatherRetries, sess.SynthFailures, sess.PendingSlots,
		sess.Recording, sess.RecordingURL, sess.Outcome, sess.Archived,
	)
	if err != nil {
		return fmt.Errorf("inserting call session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	sess.ID = id
	return nil
}

// GetByCallRef returns the session for a carrier call reference, or nil if
// none exists.
func (r *callSessionRepo) GetByCallRef(ctx context.Context, callRef string) (*models.CallSession, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+callSessionColumns+` FROM call_sessions WHERE call_ref = ?`, callRef,
	))
}

// Update persists all mutable session fields and bumps updated_at.
func (r *callSessionRepo) Update(ctx context.Context, sess *models.CallSession) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET lead_id = ?, campaign_id = ?, state = ?, language = ?,
		 turn_index = ?, gather_retries = ?, synth_failures = ?, pending_slots = ?,
		 recording = ?, recording_url = ?, outcome = ?, archived = ?,
		 updated_at = datetime('now')
		 WHERE call_ref = ?`,
		sess.LeadID, sess.CampaignID, sess.State, sess.Language,
		sess.TurnIndex, sess.GatherRetries, sess.SynthFailures, sess.PendingSlots,
		sess.Recording, sess.RecordingURL, sess.Outcome, sess.Archived,
		sess.CallRef,
	)
	if err != nil {
		return fmt.Errorf("updating call session: %w", err)
	}
	return nil
}

// Archive marks a terminal session as archived. The row is retained.
func (r *callSessionRepo) Archive(ctx context.Context, callRef string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET archived = 1, updated_at = datetime('now') WHERE call_ref = ?`,
		callRef,
	)
	if err != nil {
		return fmt.Errorf("archiving call session: %w", err)
	}
	return nil
}

// CountActive returns the number of non-terminal sessions.
func (r *callSessionRepo) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_sessions WHERE state NOT IN (?, ?)`,
		models.StateCompleted, models.StateFailed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active sessions: %w", err)
	}
	return count, nil
}

// CountByState returns session counts grouped by state.
func (r *callSessionRepo) CountByState(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "state")
}

// CountByOutcome returns terminal session counts grouped by outcome.
func (r *callSessionRepo) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "outcome")
}

func (r *callSessionRepo) countGrouped(ctx context.Context, column string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM call_sessions WHERE `+column+` != '' GROUP BY `+column)
	if err != nil {
		return nil, fmt.Errorf("counting sessions by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scanning session count row: %w", err)
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session count rows: %w", err)
	}
	return counts, nil
}

func (r *callSessionRepo) scanOne(row *sql.Row) (*models.CallSession, error) {
	var s models.CallSession
	err := row.Scan(&s.ID, &s.CallRef, &s.LeadID, &s.CampaignID, &s.State, &s.Language,
		&s.TurnIndex, &s.GatherRetries, &s.SynthFailures, &s.PendingSlots,
		&s.Recording, &s.RecordingURL, &s.Outcome, &s.Archived, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call session: %w", err)
	}
	return &s, nil
}
