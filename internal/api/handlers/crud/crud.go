// Package crud exposes a services.Collection over JSON HTTP.
package crud

import (
	"errors"
	"net/http"
	"strings"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/validate"
)

const maxLimit = 100

// Handler serves list/get/create/update/delete for one collection. Check
// normalizes and validates a submitted form in place.
type Handler[V any] struct {
	Coll     services.Collection[V]
	Search   odata.Builder
	Check    func(*V) error
	PageSize int
	// Decorate, when set, completes a view before it is written.
	Decorate func(r *http.Request, v *V)
}

type pageView[V any] struct {
	Items      []V  `json:"items"`
	TotalCount int  `json:"totalCount"`
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	HasMore    bool `json:"hasMore"`
}

func (h *Handler[V]) pageSize() int {
	if h.PageSize <= 0 {
		return paging.DefaultPageSize
	}
	return h.PageSize
}

// List serves GET with ?limit=&offset= and one query parameter per search
// criterion.
func (h *Handler[V]) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := validate.ClampLimitOffset(q.Get("limit"), q.Get("offset"), h.pageSize(), maxLimit)
	crit := odata.Criteria{}
	for _, f := range h.Search.Fields() {
		crit[f.Key] = q.Get(f.Key)
		for _, p := range f.Parts {
			crit[p.Key] = q.Get(p.Key)
		}
	}
	page, err := h.Coll.Fetcher(h.Search)(r.Context(), crit, paging.Window{Offset: offset, PageSize: limit})
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []V{}
	}
	for i := range page.Items {
		h.decorate(r, &page.Items[i])
	}
	httpx.OK(w, pageView[V]{
		Items:      page.Items,
		TotalCount: page.Total,
		Offset:     offset,
		Limit:      limit,
		HasMore:    offset+limit < page.Total,
	})
}

func (h *Handler[V]) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Coll.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	h.decorate(r, &v)
	httpx.OK(w, v)
}

func (h *Handler[V]) decorate(r *http.Request, v *V) {
	if h.Decorate != nil {
		h.Decorate(r, v)
	}
}

func (h *Handler[V]) form(w http.ResponseWriter, r *http.Request) (V, bool) {
	var v V
	if err := httpx.DecodeJSON(r, &v); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		apperr.WriteStatus(w, r, status, "Invalid request body", err.Error())
		return v, false
	}
	if h.Check != nil {
		if err := h.Check(&v); err != nil {
			mw.WriteError(w, r, err)
			return v, false
		}
	}
	return v, true
}

func (h *Handler[V]) Create(w http.ResponseWriter, r *http.Request) {
	v, ok := h.form(w, r)
	if !ok {
		return
	}
	out, err := h.Coll.Create(r.Context(), v)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.Created(w, out)
}

func (h *Handler[V]) Update(w http.ResponseWriter, r *http.Request) {
	v, ok := h.form(w, r)
	if !ok {
		return
	}
	out, err := h.Coll.Update(r.Context(), r.PathValue("id"), v)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler[V]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Coll.Delete(r.Context(), r.PathValue("id")); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OKNoData(w)
}

// Mount registers the routes under prefix. read guards GET routes, write the
// mutating ones.
func (h *Handler[V]) Mount(mux *http.ServeMux, prefix string, read, write func(http.Handler) http.Handler) {
	prefix = "/" + strings.Trim(prefix, "/")
	mux.Handle("GET "+prefix, read(http.HandlerFunc(h.List)))
	mux.Handle("GET "+prefix+"/{id}", read(http.HandlerFunc(h.Get)))
	mux.Handle("POST "+prefix, write(http.HandlerFunc(h.Create)))
	mux.Handle("PUT "+prefix+"/{id}", write(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE "+prefix+"/{id}", write(http.HandlerFunc(h.Delete)))
}
