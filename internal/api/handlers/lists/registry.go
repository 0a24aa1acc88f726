package lists

import (
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/paging"
)

var ErrUnknownList = errors.New("lists: unknown list")

// Def describes one list. Roles, when set, restricts who may open it.
type Def struct {
	Name  string
	Roles []string
	make  func(pageSize int, delay time.Duration, log *logrus.Entry) list
}

// Define builds a list definition over fetch with initial filters.
func Define[T, F any](name string, fetch paging.Fetcher[T, F], initial F, roles ...string) Def {
	return Def{
		Name:  name,
		Roles: roles,
		make: func(pageSize int, delay time.Duration, log *logrus.Entry) list {
			return newEntry(name, fetch, initial, pageSize, delay, log)
		},
	}
}

type Options struct {
	PageSize int
	Debounce time.Duration
	Size     int
	Logger   *logrus.Entry
}

// Registry holds the list controllers of every browser session in a bounded
// LRU keyed by sid and list name. Evicted lists stop their debouncer.
type Registry struct {
	defs map[string]Def
	opts Options

	mu    sync.Mutex
	cache *lru.Cache
}

func NewRegistry(opts Options, defs ...Def) (*Registry, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = paging.DefaultPageSize
	}
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c, err := lru.NewWithEvict(opts.Size, func(_, v interface{}) { v.(list).stop() })
	if err != nil {
		return nil, err
	}
	r := &Registry{defs: make(map[string]Def, len(defs)), opts: opts, cache: c}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r, nil
}

func (r *Registry) Def(name string) (Def, bool) {
	d, ok := r.defs[name]
	return d, ok
}

func cacheKey(sid, name string) string { return sid + "|" + name }

func (r *Registry) get(sid, name string) (list, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, ErrUnknownList
	}
	key := cacheKey(sid, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(key); ok {
		return v.(list), nil
	}
	l := d.make(r.opts.PageSize, r.opts.Debounce, r.opts.Logger.WithField("list", name))
	r.cache.Add(key, l)
	return l, nil
}

// Purge drops every list of sid, e.g. on logout.
func (r *Registry) Purge(sid string) {
	prefix := sid + "|"
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.cache.Keys() {
		if s, ok := k.(string); ok && strings.HasPrefix(s, prefix) {
			r.cache.Remove(k)
		}
	}
}

// Len is the number of live lists across all sessions.
func (r *Registry) Len() int { return r.cache.Len() }
