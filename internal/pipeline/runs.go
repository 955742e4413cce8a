package pipeline

import (
	"context"
	"sync"
)

// DefaultRunRetention is how many runs Runs keeps when no limit is given.
const DefaultRunRetention = 100

// Runs tracks background runs by ID so their status can be polled.
// Once more than the retention limit are tracked, the oldest finished
// runs are forgotten. Runs still in flight and the run most recently
// added are never dropped, so the table can briefly exceed the limit.
type Runs struct {
	mu      sync.Mutex
	entries map[string]*runEntry
	order   []string
	max     int
}

type runEntry struct {
	handle *Handle
	cancel context.CancelFunc
}

// NewRuns creates a tracker keeping up to max runs (DefaultRunRetention if max <= 0).
func NewRuns(max int) *Runs {
	if max <= 0 {
		max = DefaultRunRetention
	}
	return &Runs{
		entries: make(map[string]*runEntry),
		max:     max,
	}
}

// Add tracks a run. cancel, if set, is called by Cancel.
func (r *Runs) Add(h *Handle, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[h.ID()]; !ok {
		r.order = append(r.order, h.ID())
	}
	r.entries[h.ID()] = &runEntry{handle: h, cancel: cancel}
	r.evict(h.ID())
}

// evict drops the oldest finished runs other than keep while over the limit.
// Caller holds mu.
func (r *Runs) evict(keep string) {
	over := len(r.order) - r.max
	if over <= 0 {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if over > 0 && id != keep && finished(r.entries[id].handle) {
			delete(r.entries, id)
			over--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

func finished(h *Handle) bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}

// Get returns a tracked run.
func (r *Runs) Get(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Cancel stops a tracked run and returns its handle. It reports false for
// unknown runs. Cancelling a finished run is a no-op.
func (r *Runs) Cancel(id string) (*Handle, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	if e.cancel != nil {
		e.cancel()
	}
	return e.handle, true
}

// List returns a status snapshot of every tracked run, newest first.
// Per-group detail is omitted.
func (r *Runs) List() []Status {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		handles = append(handles, r.entries[r.order[i]].handle)
	}
	r.mu.Unlock()

	out := make([]Status, len(handles))
	for i, h := range handles {
		s := h.Status()
		s.Groups = nil
		out[i] = s
	}
	return out
}

// Len returns the number of tracked runs.
func (r *Runs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
