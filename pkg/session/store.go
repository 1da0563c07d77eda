package session

import (
	"context"
	"sync"
)

// Store is the durable session-state collaborator. Get never fails with
// "not found": an absent session yields the zero State. Merge is
// field-granular with last-write-wins semantics per field, so concurrent
// merges from duplicate webhook deliveries never corrupt the record.
type Store interface {
	Get(ctx context.Context, sessionID string) (State, error)
	Merge(ctx context.Context, sessionID string, patch Patch) error
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process Store with the same field-granular semantics
// as the Redis store. Used for tests and single-process demo mode.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[Field]string
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[Field]string)}
}

// Get returns the decoded state for the session, or the zero State.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.sessions[sessionID]
	if !ok {
		return State{}, nil
	}
	raw := make(map[string]string, len(fields))
	for f, v := range fields {
		raw[string(f)] = v
	}
	return DecodeState(raw), nil
}

// Merge applies the patch field by field; nil values delete the field.
func (m *MemoryStore) Merge(_ context.Context, sessionID string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.sessions[sessionID]
	if !ok {
		fields = make(map[Field]string)
		m.sessions[sessionID] = fields
	}
	for f, v := range patch {
		if v == nil {
			delete(fields, f)
			continue
		}
		encoded, err := EncodeValue(f, v)
		if err != nil {
			return err
		}
		fields[f] = encoded
	}
	return nil
}

// Clear removes the whole session record.
func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
