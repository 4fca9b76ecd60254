// Package session implements the durable call session store. All dialog
// state mutation flows through Store.Update, which serializes events per
// carrier call reference while letting different calls proceed in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dhruv465/Project-Call-sub007/internal/database"
	"github.com/dhruv465/Project-Call-sub007/internal/database/models"
)

// ErrUpdateInFlight is returned when an event for a call arrives while an
// earlier event for the same call is still being processed. Under correct
// per-call serialization this should not happen; the store rejects the
// overlapping mutation rather than letting it interleave.
var ErrUpdateInFlight = errors.New("session update already in flight for call")

// ErrSessionNotFound is returned by Update when no session exists for the
// call reference. It indicates an integrity problem: sessions are created
// by GetOrCreate before any update is attempted.
var ErrSessionNotFound = errors.New("session not found")

// Store provides atomic read-modify-write access to call sessions backed
// by the database repositories.
type Store struct {
	sessions database.CallSessionRepository
	turns    database.ConversationTurnRepository
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a session store over the given repositories.
func NewStore(sessions database.CallSessionRepository, turns database.ConversationTurnRepository, logger *slog.Logger) *Store {
	return &Store{
		sessions: sessions,
		turns:    turns,
		logger:   logger.With("subsystem", "session_store"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one call reference, creating it on
// first use. Terminal sessions release their entry via forget.
func (s *Store) lockFor(callRef string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[callRef]
	if !ok {
		l = &sync.Mutex{}
		s.locks[callRef] = l
	}
	return l
}

func (s *Store) forget(callRef string) {
	s.mu.Lock()
	delete(s.locks, callRef)
	s.mu.Unlock()
}

// GetOrCreate returns the session for a call reference, creating one in the
// initiated state from seed if none exists. Replaying a creation event for
// a known call reference returns the existing session unchanged; the second
// return value reports whether a new session was created.
func (s *Store) GetOrCreate(ctx context.Context, callRef string, seed models.CallSession) (*models.CallSession, bool, error) {
	l := s.lockFor(callRef)
	l.Lock()
	defer l.Unlock()

	existing, err := s.sessions.GetByCallRef(ctx, callRef)
	if err != nil {
		return nil, false, fmt.Errorf("loading session %s: %w", callRef, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	seed.CallRef = callRef
	if seed.State == "" {
		seed.State = models.StateInitiated
	}
	if seed.Language == "" {
		seed.Language = "en"
	}
	if err := s.sessions.Create(ctx, &seed); err != nil {
		return nil, false, fmt.Errorf("creating session %s: %w", callRef, err)
	}

	s.logger.Info("call session created",
		"call_ref", callRef,
		"lead_id", seed.LeadID,
		"campaign_id", seed.CampaignID,
	)
	return &seed, true, nil
}

// Update loads the session, runs fn under the call's exclusive lock, and
// persists the result. fn may return a turn record to append to the call's
// history; the append is idempotent on (call_ref, turn_index). Sessions
// that fn drives to a terminal state are archived before Update returns.
//
// If another Update for the same call reference is in progress the mutation
// is rejected with ErrUpdateInFlight.
func (s *Store) Update(ctx context.Context, callRef string, fn func(sess *models.CallSession) (*models.ConversationTurn, error)) (*models.CallSession, error) {
	l := s.lockFor(callRef)
	if !l.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrUpdateInFlight, callRef)
	}
	defer l.Unlock()

	sess, err := s.sessions.GetByCallRef(ctx, callRef)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", callRef, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, callRef)
	}

	turn, err := fn(sess)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session %s: %w", callRef, err)
	}

	if turn != nil {
		turn.CallRef = callRef
		if err := s.turns.Append(ctx, turn); err != nil {
			return nil, fmt.Errorf("appending turn for %s: %w", callRef, err)
		}
	}

	if models.TerminalState(sess.State) && !sess.Archived {
		if err := s.archiveLocked(ctx, sess); err != nil {
			return nil, err
		}
	}

	return sess, nil
}

// Archive marks a session archived and drops its lock entry. Safe to call
// on already-archived sessions.
func (s *Store) Archive(ctx context.Context, callRef string) error {
	l := s.lockFor(callRef)
	l.Lock()
	defer l.Unlock()

	sess, err := s.sessions.GetByCallRef(ctx, callRef)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", callRef, err)
	}
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, callRef)
	}
	return s.archiveLocked(ctx, sess)
}

func (s *Store) archiveLocked(ctx context.Context, sess *models.CallSession) error {
	if err := s.sessions.Archive(ctx, sess.CallRef); err != nil {
		return fmt.Errorf("archiving session %s: %w", sess.CallRef, err)
	}
	sess.Archived = true
	s.forget(sess.CallRef)

	s.logger.Info("call session archived",
		"call_ref", sess.CallRef,
		"state", sess.State,
		"outcome", sess.Outcome,
		"turns", sess.TurnIndex,
	)
	return nil
}

// Get returns the session for a call reference without locking, for
// read-only inspection. Returns ErrSessionNotFound if none exists.
func (s *Store) Get(ctx context.Context, callRef string) (*models.CallSession, error) {
	sess, err := s.sessions.GetByCallRef(ctx, callRef)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", callRef, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, callRef)
	}
	return sess, nil
}

// Turns returns a call's turn history ordered by turn index.
func (s *Store) Turns(ctx context.Context, callRef string) ([]models.ConversationTurn, error) {
	return s.turns.ListByCallRef(ctx, callRef)
}
