package reflux

import (
	"sync"
	"time"
)

// ReloadFailure is one entry of a cache's error history.
type ReloadFailure struct {
	Err     error
	At      time.Time
	ModTime time.Time
}

// failureRing is a bounded, thread-safe history of reload failures.
// A nil ring is valid and records nothing.
type failureRing struct {
	mu      sync.RWMutex
	entries []ReloadFailure
	head    int
	count   int
}

// newFailureRing returns nil when size is not positive.
func newFailureRing(size int) *failureRing {
	if size <= 0 {
		return nil
	}
	return &failureRing{entries: make([]ReloadFailure, size)}
}

func (r *failureRing) push(f ReloadFailure) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = f
	r.head = (r.head + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
}

func (r *failureRing) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.entries)
	r.head = 0
	r.count = 0
}

// all returns the recorded failures, oldest first.
func (r *failureRing) all() []ReloadFailure {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	size := len(r.entries)
	out := make([]ReloadFailure, r.count)
	start := (r.head - r.count + size) % size
	for i := range out {
		out[i] = r.entries[(start+i)%size]
	}
	return out
}
