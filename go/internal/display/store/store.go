// Package store persists the small amount of per-token display state that
// must survive a process restart: the selection overlay snapshot and the
// short-lived guard flags used to suppress overlay flicker.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Guard flag names. Guards expire on their own; they only exist to paper
// over races between a start event and a stale selection push.
const (
	GuardJustStarted = "just_started"
	GuardWasActive   = "was_active"
)

// OverlaySnapshot is the recoverable overlay state for one token.
type OverlaySnapshot struct {
	Visible    bool  `json:"visible"`
	Selections []int `json:"selections"`
}

// Store is the persistence boundary for per-token display state.
type Store interface {
	SaveOverlay(ctx context.Context, token string, snap OverlaySnapshot) error
	LoadOverlay(ctx context.Context, token string) (OverlaySnapshot, bool, error)
	ClearOverlay(ctx context.Context, token string) error

	SetGuard(ctx context.Context, token, name string, ttl time.Duration) error
	Guard(ctx context.Context, token, name string) (bool, error)
	ClearGuard(ctx context.Context, token, name string) error

	Close() error
}

// MemoryStore keeps everything in-process. It backs tests and lets a
// display run without Redis at the cost of losing recovery across
// restarts.
type MemoryStore struct {
	clock clockwork.Clock

	mu       sync.Mutex
	overlays map[string]OverlaySnapshot
	guards   map[string]time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock,
		overlays: make(map[string]OverlaySnapshot),
		guards:   make(map[string]time.Time),
	}
}

func (m *MemoryStore) SaveOverlay(_ context.Context, token string, snap OverlaySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Selections = append([]int(nil), snap.Selections...)
	m.overlays[token] = snap
	return nil
}

func (m *MemoryStore) LoadOverlay(_ context.Context, token string) (OverlaySnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.overlays[token]
	if !ok {
		return OverlaySnapshot{}, false, nil
	}
	snap.Selections = append([]int(nil), snap.Selections...)
	return snap, true, nil
}

func (m *MemoryStore) ClearOverlay(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overlays, token)
	return nil
}

func (m *MemoryStore) SetGuard(_ context.Context, token, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guards[token+":"+name] = m.clock.Now().Add(ttl)
	return nil
}

func (m *MemoryStore) Guard(_ context.Context, token, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deadline, ok := m.guards[token+":"+name]
	if !ok {
		return false, nil
	}
	if m.clock.Now().After(deadline) {
		delete(m.guards, token+":"+name)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) ClearGuard(_ context.Context, token, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guards, token+":"+name)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
