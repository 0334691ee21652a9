package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNotFound means the session id is unknown or already evicted.
var ErrNotFound = eris.New("session: not found")

// Store holds all live sessions in memory.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// StoreOption configures the session store.
type StoreOption func(*Store)

// WithClock overrides the store clock, used by tests to control eviction.
func WithClock(now func() time.Time) StoreOption {
	return func(st *Store) {
		st.now = now
	}
}

// NewStore creates a store that evicts sessions idle longer than ttl.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	st := &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Create registers a new session with a fresh id.
func (st *Store) Create() *Session {
	s := newSession(uuid.NewString(), st.now)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	zap.L().Info("session created", zap.String("session_id", s.ID))
	return s
}

// Get returns the session for id, or ErrNotFound.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle past the TTL and reports how many it removed.
// A session mid-operation is never evicted, however long the operation runs.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for id, s := range st.sessions {
		if !s.LastActive().Before(cutoff) {
			continue
		}
		if !s.sem.TryAcquire(1) {
			continue
		}
		s.sem.Release(1)
		delete(st.sessions, id)
		evicted++
		zap.L().Info("session evicted", zap.String("session_id", id))
	}
	return evicted
}

// Run sweeps on the given interval until ctx is cancelled.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				zap.L().Debug("session sweep", zap.Int("evicted", n))
			}
		}
	}
}
