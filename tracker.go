package itemapprove

import (
	"context"
	"sort"
	"sync"
	"time"
)

// pendingRequest is the tracker's record for one request key. cancel aborts
// both the debounce wait and the in-flight call.
type pendingRequest struct {
	key       string
	seq       uint64
	state     RequestState
	cancel    context.CancelCauseFunc
	createdAt time.Time
}

// RequestTracker owns the key -> pending request map of one orchestrator and
// enforces last-write-wins per key.
type RequestTracker struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]*pendingRequest
	closed  bool
}

// NewRequestTracker returns an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		entries: make(map[string]*pendingRequest),
	}
}

// begin registers a new request for key in the Debouncing state. A previous
// request for the same key is cancelled with ErrSuperseded; its state is
// returned (StateIdle when there was none).
func (rt *RequestTracker) begin(key string, cancel context.CancelCauseFunc) (*pendingRequest, RequestState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, StateIdle, ErrClosed
	}

	prevState := StateIdle
	if prev := rt.entries[key]; prev != nil {
		prevState = prev.state
		prev.cancel(ErrSuperseded)
	}

	rt.seq++
	p := &pendingRequest{
		key:       key,
		seq:       rt.seq,
		state:     StateDebouncing,
		cancel:    cancel,
		createdAt: time.Now(),
	}
	rt.entries[key] = p
	return p, prevState, nil
}

// transition moves p to state. It reports false when p is no longer the
// current request for its key.
func (rt *RequestTracker) transition(p *pendingRequest, state RequestState) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.entries[p.key] != p {
		return false
	}
	p.state = state
	return true
}

// finish frees p's key if p still owns it.
func (rt *RequestTracker) finish(p *pendingRequest) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.entries[p.key] == p {
		delete(rt.entries, p.key)
	}
}

// CancelAll aborts and forgets every tracked request. It returns how many
// were cancelled.
func (rt *RequestTracker) CancelAll(cause error) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n := len(rt.entries)
	for key, p := range rt.entries {
		p.cancel(cause)
		delete(rt.entries, key)
	}
	return n
}

// close cancels everything and refuses new requests.
func (rt *RequestTracker) close(cause error) int {
	rt.mu.Lock()
	rt.closed = true
	rt.mu.Unlock()
	return rt.CancelAll(cause)
}

// EvictOldest cancels the oldest half of the tracked requests when more than
// ceiling are tracked, and always enough to get back to ceiling.
func (rt *RequestTracker) EvictOldest(ceiling int, cause error) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n := len(rt.entries)
	if ceiling <= 0 || n <= ceiling {
		return 0
	}

	evict := n / 2
	if n-evict > ceiling {
		evict = n - ceiling
	}

	pending := make([]*pendingRequest, 0, n)
	for _, p := range rt.entries {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].seq < pending[j].seq
	})

	for _, p := range pending[:evict] {
		p.cancel(cause)
		delete(rt.entries, p.key)
	}
	return evict
}

// Len returns the number of tracked keys.
func (rt *RequestTracker) Len() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.entries)
}

// State returns the state of key, StateIdle when untracked.
func (rt *RequestTracker) State(key string) RequestState {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if p, ok := rt.entries[key]; ok {
		return p.state
	}
	return StateIdle
}
