// Package paging implements incremental, filterable lists: a controller that
// appends fixed-size windows, a sentinel trigger and an input debouncer.
package paging

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/backend"
)

const DefaultPageSize = 20

type Window struct {
	Offset   int
	PageSize int
}

func (w Window) Page() int {
	if w.PageSize <= 0 {
		return 0
	}
	return w.Offset / w.PageSize
}

// Fetcher loads one window under the given filters.
type Fetcher[T, F any] func(ctx context.Context, filters F, win Window) (backend.Page[T], error)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusEmpty   Status = "empty"
	StatusReady   Status = "ready"
	StatusEnd     Status = "end"
	StatusError   Status = "error"
)

// State is a point-in-time copy of a controller.
type State[T, F any] struct {
	Items      []T
	Offset     int
	Next       int
	TotalCount int
	HasMore    bool
	Loading    bool
	Loaded     bool
	Err        string
	Filters    F
	Generation uint64
}

func (s State[T, F]) Status() Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.Err != "":
		return StatusError
	case !s.Loaded:
		return StatusIdle
	case len(s.Items) == 0:
		return StatusEmpty
	case !s.HasMore:
		return StatusEnd
	default:
		return StatusReady
	}
}

type Options struct {
	PageSize int
	Logger   *logrus.Entry
	// Message turns a fetch error into the text kept in State.Err.
	Message func(error) string
}

// Controller owns one list. All methods are safe for concurrent use; at most
// one fetch is in flight at a time, and a fetch started before the latest
// SetFilters or Refresh never writes its result.
type Controller[T, F any] struct {
	fetch    Fetcher[T, F]
	pageSize int
	log      *logrus.Entry
	message  func(error) string

	mu      sync.Mutex
	gen     uint64
	items   []T
	offset  int
	next    int
	total   int
	hasMore bool
	loading bool
	loaded  bool
	err     string
	filters F
}

func NewController[T, F any](fetch Fetcher[T, F], initial F, opts Options) *Controller[T, F] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Message == nil {
		opts.Message = backend.Message
	}
	return &Controller[T, F]{
		fetch:    fetch,
		pageSize: opts.PageSize,
		log:      opts.Logger,
		message:  opts.Message,
		hasMore:  true,
		filters:  initial,
	}
}

func (c *Controller[T, F]) PageSize() int { return c.pageSize }

type request[F any] struct {
	gen     uint64
	win     Window
	filters F
}

// InitialLoad fetches the first window under the current filters and replaces
// the items with it.
func (c *Controller[T, F]) InitialLoad(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	req := c.begin(0)
	c.mu.Unlock()
	return c.run(ctx, req)
}

// LoadMore appends the next window. It is a no-op while a fetch is in flight
// or once the end of the list has been reached.
func (c *Controller[T, F]) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	req := c.begin(c.next)
	c.mu.Unlock()
	return c.run(ctx, req)
}

// SetFilters clears the list and reloads it from the first window.
func (c *Controller[T, F]) SetFilters(ctx context.Context, f F) error {
	c.mu.Lock()
	req := c.reset(f)
	c.mu.Unlock()
	return c.run(ctx, req)
}

// Refresh is SetFilters with the current filters.
func (c *Controller[T, F]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	req := c.reset(c.filters)
	c.mu.Unlock()
	return c.run(ctx, req)
}

func (c *Controller[T, F]) Snapshot() State[T, F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return State[T, F]{
		Items:      items,
		Offset:     c.offset,
		Next:       c.next,
		TotalCount: c.total,
		HasMore:    c.hasMore,
		Loading:    c.loading,
		Loaded:     c.loaded,
		Err:        c.err,
		Filters:    c.filters,
		Generation: c.gen,
	}
}

// reset must be called with mu held.
func (c *Controller[T, F]) reset(f F) request[F] {
	c.gen++
	c.filters = f
	c.items = nil
	c.offset = 0
	c.next = 0
	c.total = 0
	c.hasMore = true
	c.loaded = false
	c.err = ""
	return c.begin(0)
}

// begin must be called with mu held.
func (c *Controller[T, F]) begin(offset int) request[F] {
	c.loading = true
	return request[F]{
		gen:     c.gen,
		win:     Window{Offset: offset, PageSize: c.pageSize},
		filters: c.filters,
	}
}

func (c *Controller[T, F]) run(ctx context.Context, req request[F]) error {
	page, err := c.fetch(ctx, req.filters, req.win)

	c.mu.Lock()
	defer c.mu.Unlock()

	if req.gen != c.gen {
		c.log.WithFields(logrus.Fields{
			"offset":     req.win.Offset,
			"generation": req.gen,
			"current":    c.gen,
		}).Debug("discarding superseded page")
		return nil
	}
	c.loading = false

	if err != nil {
		c.err = c.message(err)
		c.log.WithError(err).WithField("offset", req.win.Offset).Warn("page load failed")
		return err
	}

	if req.win.Offset == 0 {
		c.items = append([]T(nil), page.Items...)
	} else {
		c.items = append(c.items, page.Items...)
	}
	c.offset = req.win.Offset
	c.next = req.win.Offset + c.pageSize
	c.total = page.Total
	c.hasMore = c.offset+c.pageSize < c.total
	c.loaded = true
	c.err = ""
	return nil
}
