package alerts

import (
	"sync"
	"time"
)

// Registry rate-limits alerts per kind. Entries are created lazily on first
// fire and live for the process lifetime; Admit is the only mutation path.
type Registry struct {
	window time.Duration

	mu        sync.Mutex
	lastFired map[Kind]time.Time
}

// NewRegistry constructs a registry with the given cooldown window.
// A non-positive window admits every candidate.
func NewRegistry(window time.Duration) *Registry {
	return &Registry{
		window:    window,
		lastFired: make(map[Kind]time.Time),
	}
}

// Admit reports whether an alert of this kind may fire at now, and marks it
// fired when admitted. The check and the update are one atomic operation, so
// two racing calls within the window admit exactly one.
func (r *Registry) Admit(kind Kind, now time.Time) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.lastFired[kind]
	if ok && r.window > 0 && now.Sub(last) < r.window {
		return false
	}
	r.lastFired[kind] = now
	return true
}

// LastFired returns the last admitted fire time for a kind, if any.
func (r *Registry) LastFired(kind Kind) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastFired[kind]
	return last, ok
}
