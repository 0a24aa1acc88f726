package paging

import (
	"sync"
	"time"
)

// Debouncer delivers only the last value pushed within a quiet period.
type Debouncer[V any] struct {
	delay time.Duration
	fn    func(V)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending bool
	stopped bool
}

func NewDebouncer[V any](delay time.Duration, fn func(V)) *Debouncer[V] {
	return &Debouncer[V]{delay: delay, fn: fn}
}

// Push restarts the quiet period with v as the value to deliver.
func (d *Debouncer[V]) Push(v V) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if seq != d.seq || d.stopped {
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.mu.Unlock()
		d.fn(v)
	})
}

// Pending reports whether a value is waiting for its quiet period to end.
func (d *Debouncer[V]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop drops any pending value; later pushes are ignored.
func (d *Debouncer[V]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
