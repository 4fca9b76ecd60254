package database

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// conversationTurnRepo implements ConversationTurnRepository.
type conversationTurnRepo struct {
	db *DB
}

// NewConversationTurnRepository creates a new ConversationTurnRepository.
func NewConversationTurnRepository(db *DB) ConversationTurnRepository {
	return &conversationTurnRepo{db: db}
}

// Append inserts a turn record. INSERT OR IGNORE on the
// (call_ref, turn_index) unique constraint makes replayed deliveries no-ops.
func (r *conversationTurnRepo) Append(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = xid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversation_turns
		 (id, call_ref, turn_index, prompt, speech, emotion, emotion_confidence, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.CallRef, turn.TurnIndex, turn.Prompt, turn.Speech,
		turn.Emotion, turn.EmotionConfidence, turn.Action,
	)
	if err != nil {
		return fmt.Errorf("appending conversation turn: %w", err)
	}
	return nil
}

// ListByCallRef returns a call's turn history ordered by turn index.
func (r *conversationTurnRepo) ListByCallRef(ctx context.Context, callRef string) ([]models.ConversationTurn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_ref, turn_index, prompt, speech, emotion, emotion_confidence,
		 action, created_at
		 FROM conversation_turns WHERE call_ref = ? ORDER BY turn_index ASC`, callRef,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.CallRef, &t.TurnIndex, &t.Prompt, &t.Speech,
			&t.Emotion, &t.EmotionConfidence, &t.Action, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation turn rows: %w", err)
	}

	return turns, nil
}

// CountByCallRef returns the number of recorded turns for a call.
func (r *conversationTurnRepo) CountByCallRef(ctx context.Context, callRef string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_turns WHERE call_ref = ?`, callRef).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting conversation turns: %w", err)
	}
	return count, nil
}
