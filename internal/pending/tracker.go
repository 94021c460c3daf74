// Package pending tracks which conversations are waiting on an AI reply.
//
// A Tracker is session-scoped state: construct one at start-up and hand it to
// every component that reads or writes it. Nothing is persisted; a restart
// forgets all pending flags.
package pending

import (
	"sort"
	"sync"
)

// Tracker maps a conversation id to its "awaiting AI reply" flag.
// The zero value is not usable; call New. Safe for concurrent use; concurrent
// writes to the same id resolve last-writer-wins.
type Tracker struct {
	mu     sync.RWMutex
	status map[string]bool
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{status: make(map[string]bool)}
}

// SetPending records whether id is awaiting a reply.
func (t *Tracker) SetPending(id string, isPending bool) {
	t.mu.Lock()
	t.status[id] = isPending
	t.mu.Unlock()
}

// IsPending reports whether id is awaiting a reply. Unknown ids are not pending.
func (t *Tracker) IsPending(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status[id]
}

// ClearPending forgets id.
func (t *Tracker) ClearPending(id string) {
	t.mu.Lock()
	delete(t.status, id)
	t.mu.Unlock()
}

// Count returns the number of ids currently pending.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, v := range t.status {
		if v {
			n++
		}
	}
	return n
}

// Snapshot returns the ids currently pending, sorted.
func (t *Tracker) Snapshot() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.status))
	for id, v := range t.status {
		if v {
			out = append(out, id)
		}
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}
