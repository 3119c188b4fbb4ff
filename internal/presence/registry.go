// Package presence tracks which identities currently hold an open,
// authenticated connection. The registry is in-memory by design: it is
// not a durability layer, and losing it on restart is expected since
// every client re-announces on reconnect.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

// Watcher receives the full online snapshot after every presence change.
// Watchers are invoked synchronously in mutation order and must not block
// or call back into the registry.
type Watcher func(online []domain.PresenceEntry)

// Registry is the process-wide directory of connected users. It is
// created at server start and torn down at shutdown; there is no
// package-level instance.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]domain.PresenceEntry
	watchers []Watcher
	clock    func() time.Time
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]domain.PresenceEntry),
		clock:   time.Now,
	}
}

// Watch adds a watcher for presence changes. Watchers registered after
// startup do not receive a catch-up snapshot; callers needing one use
// Snapshot directly.
func (r *Registry) Watch(w Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, w)
}

// Register inserts or replaces the entry for identity.ID with a fresh
// ConnectedAt. Idempotent per id: a reconnect replaces, never duplicates.
func (r *Registry) Register(identity domain.UserIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[identity.ID] = domain.PresenceEntry{
		ID:          identity.ID,
		Name:        identity.Name,
		ConnectedAt: r.clock(),
	}
	r.notifyLocked()
}

// Unregister removes the entry for id. A no-op when absent: disconnect
// races are expected and harmless.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	r.notifyLocked()
}

// Snapshot returns a copy of the current online set, sorted by id.
// The copy does not update as presence changes.
func (r *Registry) Snapshot() []domain.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// IsOnline reports whether id currently has a registered connection.
func (r *Registry) IsOnline(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) snapshotLocked() []domain.PresenceEntry {
	online := make([]domain.PresenceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		online = append(online, e)
	}
	sort.Slice(online, func(i, j int) bool { return online[i].ID < online[j].ID })
	return online
}

func (r *Registry) notifyLocked() {
	snapshot := r.snapshotLocked()
	for _, w := range r.watchers {
		w(snapshot)
	}
}
