// Package services wraps the library API resources and translates between
// their wire models and the view models the rest of the app works with.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
)

// Collection is the surface handlers and lists use; *Resource implements it.
type Collection[V any] interface {
	Name() string
	List(ctx context.Context, q odata.Query) (backend.Page[V], error)
	All(ctx context.Context, filter string) ([]V, error)
	Get(ctx context.Context, id string) (V, error)
	Create(ctx context.Context, v V) (V, error)
	Update(ctx context.Context, id string, v V) (V, error)
	Delete(ctx context.Context, id string) error
	Fetcher(b odata.Builder) paging.Fetcher[V, odata.Criteria]
	SlicedFetcher(b odata.Builder) paging.Fetcher[V, odata.Criteria]
}

// Resource is CRUD over GET/POST /<name> and GET/PUT/DELETE /<name>/{id}.
// W is the backend's wire model, V the view model.
type Resource[W, V any] struct {
	c      *backend.Client
	name   string
	toView func(W) V
	toWire func(V) W
}

func NewResource[W, V any](c *backend.Client, name string, toView func(W) V, toWire func(V) W) *Resource[W, V] {
	return &Resource[W, V]{c: c, name: name, toView: toView, toWire: toWire}
}

func (r *Resource[W, V]) Name() string { return r.name }

func (r *Resource[W, V]) path(id string) string {
	return r.name + "/" + url.PathEscape(id)
}

func (r *Resource[W, V]) List(ctx context.Context, q odata.Query) (backend.Page[V], error) {
	return listAt(ctx, r.c, q.Endpoint(r.name), r.toView)
}

// All fetches every row matching filter in one request.
func (r *Resource[W, V]) All(ctx context.Context, filter string) ([]V, error) {
	p, err := r.List(ctx, odata.Query{Filter: filter, OrderBy: "Id"})
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

func (r *Resource[W, V]) Get(ctx context.Context, id string) (V, error) {
	var w W
	if err := r.c.Call(ctx, http.MethodGet, r.path(id), nil, &w); err != nil {
		var zero V
		return zero, err
	}
	return r.toView(w), nil
}

// Create returns the stored row, or v itself when the backend answers
// without a body.
func (r *Resource[W, V]) Create(ctx context.Context, v V) (V, error) {
	return r.write(ctx, http.MethodPost, r.name, v)
}

func (r *Resource[W, V]) Update(ctx context.Context, id string, v V) (V, error) {
	return r.write(ctx, http.MethodPut, r.path(id), v)
}

func (r *Resource[W, V]) Delete(ctx context.Context, id string) error {
	return r.c.Call(ctx, http.MethodDelete, r.path(id), nil, nil)
}

func (r *Resource[W, V]) write(ctx context.Context, method, endpoint string, v V) (V, error) {
	var raw json.RawMessage
	if err := r.c.Call(ctx, method, endpoint, r.toWire(v), &raw); err != nil {
		var zero V
		return zero, err
	}
	if len(raw) == 0 {
		return v, nil
	}
	var w W
	if err := json.Unmarshal(raw, &w); err != nil {
		var zero V
		return zero, fmt.Errorf("services: decode %s %s: %w", method, endpoint, err)
	}
	return r.toView(w), nil
}

// Fetcher pages the resource server-side with $top/$skip/$count, filtering
// by the criteria b understands.
func (r *Resource[W, V]) Fetcher(b odata.Builder) paging.Fetcher[V, odata.Criteria] {
	return func(ctx context.Context, c odata.Criteria, win paging.Window) (backend.Page[V], error) {
		filter, err := b.Build(c)
		if err != nil {
			return backend.Page[V]{}, err
		}
		return r.List(ctx, window(filter, win))
	}
}

// SlicedFetcher fetches every match once per window and pages locally.
func (r *Resource[W, V]) SlicedFetcher(b odata.Builder) paging.Fetcher[V, odata.Criteria] {
	return paging.SliceFetcher(func(ctx context.Context, c odata.Criteria) ([]V, error) {
		filter, err := b.Build(c)
		if err != nil {
			return nil, err
		}
		return r.All(ctx, filter)
	})
}

func window(filter string, win paging.Window) odata.Query {
	return odata.Query{Top: win.PageSize, Skip: win.Offset, Filter: filter, OrderBy: "Id", Count: true}
}

func listAt[W, V any](ctx context.Context, c *backend.Client, endpoint string, toView func(W) V) (backend.Page[V], error) {
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return backend.Page[V]{}, err
	}
	wp, err := backend.DecodePage[W](raw)
	if err != nil {
		return backend.Page[V]{}, err
	}
	out := make([]V, len(wp.Items))
	for i, w := range wp.Items {
		out[i] = toView(w)
	}
	return backend.Page[V]{Items: out, Total: wp.Total}, nil
}
