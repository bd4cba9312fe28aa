package chat

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// entry pairs a State with the lock that serializes access to it.
type entry struct {
	mu    sync.Mutex
	state *State
}

// Registry keeps one State per UI session, bounded in count and idle time.
type Registry struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *entry]
}

// NewRegistry creates a Registry holding at most size states, each dropped
// after ttl without use.
func NewRegistry(size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 256
	}
	return &Registry{
		cache: expirable.NewLRU[string, *entry](size, nil, ttl),
	}
}

// Acquire locks and returns the State for id, creating it on first use. The
// caller must call release when done.
func (r *Registry) Acquire(id string) (state *State, release func()) {
	r.mu.Lock()
	e, ok := r.cache.Get(id)
	if !ok {
		e = &entry{state: NewState()}
	}
	// Re-adding refreshes the expiry.
	r.cache.Add(id, e)
	r.mu.Unlock()

	e.mu.Lock()
	return e.state, e.mu.Unlock
}

// Remove forgets the State for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(id)
}

// Len returns the number of live states.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
