package bot

import (
	"context"
	"sync"
)

// inflightRegistry tracks the cancel function of each user's in-flight
// generation so /reset can stop an abandoned poll loop instead of letting
// it run to its timeout.
type inflightRegistry struct {
	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{cancels: make(map[int64]context.CancelFunc)}
}

// Add registers the cancel function for a user, cancelling any previous one.
func (r *inflightRegistry) Add(userID int64, cancel context.CancelFunc) {
	r.mu.Lock()
	prev := r.cancels[userID]
	r.cancels[userID] = cancel
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Cancel stops the user's in-flight generation, if any, and reports whether
// one was running.
func (r *inflightRegistry) Cancel(userID int64) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[userID]
	delete(r.cancels, userID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Remove drops the registration without cancelling; used when the
// generation finished on its own.
func (r *inflightRegistry) Remove(userID int64) {
	r.mu.Lock()
	delete(r.cancels, userID)
	r.mu.Unlock()
}
