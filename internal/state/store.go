// Package state is the form state manager: it persists and restores session
// progress. No other component writes the checkpoint store.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// ErrCheckpointStale is returned by Load when a checkpoint exists but is
// older than the staleness window. The caller must start fresh: resuming
// into a portal state that has since expired (session cookies, time-boxed
// offers) is worse than restarting.
var ErrCheckpointStale = errors.New("checkpoint is older than the staleness window")

// DBPool abstracts the pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL-backed checkpoint store. One row per session,
// point reads and writes keyed by session id; no cross-session locking is
// required.
type Store struct {
	pool   DBPool
	window time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// New creates a checkpoint store and verifies the connection.
func New(ctx context.Context, pool DBPool, window time.Duration, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool:   pool,
		window: window,
		log:    logger.Named("state"),
		now:    time.Now,
	}, nil
}

const sqlUpsertCheckpoint = `
	INSERT INTO form_checkpoints (session_id, payload, saved_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (session_id) DO UPDATE SET
		payload = EXCLUDED.payload,
		saved_at = EXCLUDED.saved_at;
`

const sqlSelectCheckpoint = `
	SELECT payload, saved_at FROM form_checkpoints WHERE session_id = $1;
`

const sqlDeleteCheckpoint = `
	DELETE FROM form_checkpoints WHERE session_id = $1;
`

// Save serializes the session and upserts it keyed by session id. The
// saved_at stamp drives the staleness check on load. Save is ordered after
// the state it describes, so a crash loses at most one page of progress.
func (s *Store) Save(ctx context.Context, sess *schemas.ApplicationSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session %s: %w", sess.SessionID, err)
	}

	savedAt := s.now().UTC()
	if _, err := s.pool.Exec(ctx, sqlUpsertCheckpoint, sess.SessionID, payload, savedAt); err != nil {
		return fmt.Errorf("failed to write checkpoint for session %s: %w", sess.SessionID, err)
	}

	s.log.Debug("Checkpoint saved",
		zap.String("session_id", sess.SessionID),
		zap.Int("current_page", sess.CurrentPageIndex))
	return nil
}

// Load restores a session. A checkpoint older than the staleness window is
// discarded and reported with ErrCheckpointStale; a missing checkpoint
// returns (nil, nil).
func (s *Store) Load(ctx context.Context, sessionID string) (*schemas.ApplicationSession, error) {
	var payload []byte
	var savedAt time.Time

	err := s.pool.QueryRow(ctx, sqlSelectCheckpoint, sessionID).Scan(&payload, &savedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint for session %s: %w", sessionID, err)
	}

	if age := s.now().UTC().Sub(savedAt); age >= s.window {
		s.log.Info("Discarding expired checkpoint",
			zap.String("session_id", sessionID),
			zap.Duration("age", age),
			zap.Duration("staleness_window", s.window))
		if _, err := s.pool.Exec(ctx, sqlDeleteCheckpoint, sessionID); err != nil {
			s.log.Warn("Failed to delete expired checkpoint", zap.Error(err))
		}
		return nil, ErrCheckpointStale
	}

	var sess schemas.ApplicationSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint for session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// SetClock overrides the store's clock. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Clear removes the checkpoint after a terminal outcome.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, sqlDeleteCheckpoint, sessionID); err != nil {
		return fmt.Errorf("failed to clear checkpoint for session %s: %w", sessionID, err)
	}
	return nil
}
