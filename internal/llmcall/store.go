package llmcall

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists LLM call records.
type Store interface {
	// Insert writes a batch of calls.
	Insert(ctx context.Context, calls []Call) error
	// Get returns the call with the given ID, or nil if none exists.
	Get(ctx context.Context, id string) (*Call, error)
	// List returns calls matching the filter, newest first.
	List(ctx context.Context, filter QueryFilter) ([]Call, error)
	Close() error
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	RunID     string
	GroupKey  string
	PromptKey string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Matches reports whether c satisfies every set condition of f.
func (f QueryFilter) Matches(c Call) bool {
	switch {
	case f.RunID != "" && c.RunID != f.RunID:
		return false
	case f.GroupKey != "" && c.GroupKey != f.GroupKey:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.Model != "" && c.Model != f.Model:
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	}
	return true
}

// CountByPromptKey returns call counts grouped by prompt key.
func CountByPromptKey(calls []Call) map[string]int {
	counts := make(map[string]int)
	for _, c := range calls {
		counts[c.PromptKey]++
	}
	return counts
}

// MemoryStore keeps calls in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	calls []Call
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, calls []Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, calls...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.calls {
		if s.calls[i].ID == id {
			c := s.calls[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) List(_ context.Context, filter QueryFilter) ([]Call, error) {
	s.mu.RLock()
	var out []Call
	for _, c := range s.calls {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored calls.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
