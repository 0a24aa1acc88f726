// Package lists serves the infinite-scroll lists of one browser session.
package lists

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/paging"
)

// View is the list state the page renders. Sentinel is the id of the
// end-of-list marker to observe; it is empty when there is nothing more to
// load.
type View struct {
	Name       string        `json:"name"`
	Items      any           `json:"items"`
	TotalCount int           `json:"totalCount"`
	HasMore    bool          `json:"hasMore"`
	Loading    bool          `json:"loading"`
	Error      string        `json:"error,omitempty"`
	Status     paging.Status `json:"status"`
	Sentinel   string        `json:"sentinel,omitempty"`
	Pending    bool          `json:"pending"`
	Filters    any           `json:"filters"`
}

// list erases the item and filter types of an entry.
type list interface {
	view() View
	ensureLoaded(ctx context.Context) error
	setFilters(ctx context.Context, raw json.RawMessage) error
	refresh(ctx context.Context) error
	observe(ctx context.Context, sentinel string, intersecting bool) error
	stop()
}

type filterPush[F any] struct {
	ctx context.Context
	f   F
}

type entry[T, F any] struct {
	name     string
	ctrl     *paging.Controller[T, F]
	trigger  *paging.Trigger
	debounce *paging.Debouncer[filterPush[F]]
	log      *logrus.Entry

	mu      sync.Mutex
	started bool
}

func newEntry[T, F any](name string, fetch paging.Fetcher[T, F], initial F, pageSize int, delay time.Duration, log *logrus.Entry) *entry[T, F] {
	e := &entry[T, F]{name: name, log: log}
	e.ctrl = paging.NewController(fetch, initial, paging.Options{PageSize: pageSize, Logger: log})
	e.trigger = paging.NewTrigger(e.ctrl.LoadMore)
	e.debounce = paging.NewDebouncer(delay, func(p filterPush[F]) {
		if err := e.ctrl.SetFilters(p.ctx, p.f); err != nil {
			e.log.WithError(err).Debug("debounced filter load failed")
		}
	})
	return e
}

func (e *entry[T, F]) view() View {
	st := e.ctrl.Snapshot()
	v := View{
		Name:       e.name,
		Items:      st.Items,
		TotalCount: st.TotalCount,
		HasMore:    st.HasMore,
		Loading:    st.Loading,
		Error:      st.Err,
		Status:     st.Status(),
		Pending:    e.debounce.Pending(),
		Filters:    st.Filters,
	}
	if st.Loaded && st.HasMore && !st.Loading && st.Err == "" {
		v.Sentinel = fmt.Sprintf("%s-g%d-o%d", e.name, st.Generation, st.Next)
		e.trigger.Attach(v.Sentinel)
	} else {
		e.trigger.Detach(e.trigger.Current())
	}
	return v
}

// ensureLoaded runs the initial load on the first view only.
func (e *entry[T, F]) ensureLoaded(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()
	return e.ctrl.InitialLoad(ctx)
}

// setFilters queues f for delivery after the quiet period. The load outlives
// the request that pushed it.
func (e *entry[T, F]) setFilters(ctx context.Context, raw json.RawMessage) error {
	var f F
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("lists: decode %s filters: %w", e.name, err)
		}
	}
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	e.debounce.Push(filterPush[F]{ctx: context.WithoutCancel(ctx), f: f})
	return nil
}

func (e *entry[T, F]) refresh(ctx context.Context) error {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return e.ctrl.Refresh(ctx)
}

func (e *entry[T, F]) observe(ctx context.Context, sentinel string, intersecting bool) error {
	_, err := e.trigger.Observe(ctx, sentinel, intersecting)
	return err
}

func (e *entry[T, F]) stop() { e.debounce.Stop() }
