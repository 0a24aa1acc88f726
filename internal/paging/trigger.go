package paging

import (
	"context"
	"sync"
)

// Trigger fires a load when the current end-of-list sentinel becomes visible.
// Only a not-visible to visible transition of the attached sentinel counts;
// reports for replaced sentinels are ignored.
type Trigger struct {
	load func(ctx context.Context) error

	mu      sync.Mutex
	current string
	visible bool
}

func NewTrigger(load func(ctx context.Context) error) *Trigger {
	return &Trigger{load: load}
}

// Attach makes id the observed sentinel. Re-attaching the current id is a no-op.
func (t *Trigger) Attach(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == t.current {
		return
	}
	t.current = id
	t.visible = false
}

func (t *Trigger) Detach(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == t.current {
		t.current = ""
		t.visible = false
	}
}

func (t *Trigger) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Observe records a visibility report and runs the load on an entering edge.
func (t *Trigger) Observe(ctx context.Context, id string, intersecting bool) (bool, error) {
	t.mu.Lock()
	if id == "" || id != t.current {
		t.mu.Unlock()
		return false, nil
	}
	fire := intersecting && !t.visible
	t.visible = intersecting
	t.mu.Unlock()

	if !fire {
		return false, nil
	}
	return true, t.load(ctx)
}
