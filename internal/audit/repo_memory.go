package audit

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrDuplicateEvent mirrors the primary key of audit_events.
var ErrDuplicateEvent = errors.New("audit: duplicate event id")

// MemoryRepo keeps events in process for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	ids    map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{ids: map[string]struct{}{}} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ids[e.ID]; dup {
		return ErrDuplicateEvent
	}
	r.ids[e.ID] = struct{}{}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// About returns the events recorded for targetID, oldest first.
func (r *MemoryRepo) About(targetID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out
}
