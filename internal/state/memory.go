package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// MemoryStore is the in-process checkpoint store. It honors the same
// staleness contract as the PostgreSQL store and backs tests and
// single-shot runs where no database is configured.
type MemoryStore struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload []byte
	savedAt time.Time
}

// NewMemoryStore creates an in-memory checkpoint store.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window:  window,
		now:     time.Now,
		entries: map[string]memoryEntry{},
	}
}

// Save stores a deep copy of the session via its JSON form.
func (m *MemoryStore) Save(ctx context.Context, sess *schemas.ApplicationSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session %s: %w", sess.SessionID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sess.SessionID] = memoryEntry{payload: payload, savedAt: m.now().UTC()}
	return nil
}

// Load returns the stored session, (nil, nil) when absent, or
// ErrCheckpointStale when the entry has outlived the staleness window.
func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*schemas.ApplicationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sessionID]
	if !ok {
		return nil, nil
	}
	if m.now().UTC().Sub(e.savedAt) >= m.window {
		delete(m.entries, sessionID)
		return nil, ErrCheckpointStale
	}

	var sess schemas.ApplicationSession
	if err := json.Unmarshal(e.payload, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint for session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Clear removes the checkpoint.
func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}

// SetClock overrides the store's clock. Tests only.
func (m *MemoryStore) SetClock(now func() time.Time) { m.now = now }
