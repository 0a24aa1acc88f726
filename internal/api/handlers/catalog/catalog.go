// Package catalog serves dropdown options for the book forms.
package catalog

import (
	"context"
	"net/http"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/cache"
	"github.com/5w1tchy/library-web/internal/services"
)

// Option is one entry of a select box.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Handler struct {
	Catalog *services.Catalog
	Cache   *cache.Cache // nil disables caching
}

func (h *Handler) Routes(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("GET /catalog/{attribute}", authed(http.HandlerFunc(h.Options)))
}

// Options serves GET /catalog/{attribute} with every option of one lookup
// table, e.g. /catalog/categories.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("attribute")
	load, ok := h.loader(name)
	if !ok {
		apperr.WriteStatus(w, r, http.StatusNotFound, "Unknown catalog", "No options named "+name+".")
		return
	}
	var opts []Option
	if h.Cache != nil && h.Cache.Get(r.Context(), name, &opts) {
		httpx.OK(w, opts)
		return
	}
	opts, err := load(r.Context())
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Set(r.Context(), name, opts)
	}
	httpx.OK(w, opts)
}

func (h *Handler) loader(name string) (func(context.Context) ([]Option, error), bool) {
	switch name {
	case "publishers":
		return options(h.Catalog.Publishers, func(p services.Publisher) Option {
			return Option{ID: p.ID, Name: p.Name}
		}), true
	case "authors":
		return options(h.Catalog.Authors, func(a services.Author) Option {
			return Option{ID: a.ID, Name: a.FullName}
		}), true
	}
	coll, ok := h.Catalog.Attributes()[name]
	if !ok {
		return nil, false
	}
	return options(coll, func(a services.Attribute) Option {
		return Option{ID: a.ID, Name: a.Name}
	}), true
}

func options[V any](coll services.Collection[V], conv func(V) Option) func(context.Context) ([]Option, error) {
	return func(ctx context.Context) ([]Option, error) {
		all, err := coll.All(ctx, "")
		if err != nil {
			return nil, err
		}
		out := make([]Option, len(all))
		for i, v := range all {
			out[i] = conv(v)
		}
		return out, nil
	}
}
