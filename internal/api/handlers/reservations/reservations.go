// Package reservations serves the signed-in member's reservations.
package reservations

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/validate"
)

type Handler struct {
	Reservations *services.Reservations
	PageSize     int
	Log          *logrus.Entry
}

// Routes mounts the handlers; authed wraps every route.
func (h *Handler) Routes(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("GET /reservations", authed(http.HandlerFunc(h.List)))
	mux.Handle("POST /reservations", authed(http.HandlerFunc(h.Create)))
	mux.Handle("DELETE /reservations/{id}", authed(http.HandlerFunc(h.Cancel)))
}

// List serves GET /reservations?status=&search=&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	def := h.PageSize
	if def <= 0 {
		def = paging.DefaultPageSize
	}
	limit, offset := validate.ClampLimitOffset(q.Get("limit"), q.Get("offset"), def, 100)
	page, err := h.Reservations.ListFetcher()(r.Context(), odata.Criteria{
		"status": q.Get("status"),
		"search": q.Get("search"),
	}, paging.Window{Offset: offset, PageSize: limit})
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []services.Reservation{}
	}
	httpx.OK(w, map[string]any{
		"items":      page.Items,
		"totalCount": page.Total,
		"offset":     offset,
		"limit":      limit,
		"hasMore":    offset+limit < page.Total,
	})
}

// Create serves POST /reservations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BookID   int64 `json:"bookId"`
		VolumeID int64 `json:"volumeId"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	var v validate.Errors
	if in.BookID <= 0 {
		v.Add("bookId", "required", "Choose a book to reserve.")
	}
	if in.VolumeID < 0 {
		v.Add("volumeId", "invalid", "Choose a valid volume.")
	}
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	res, err := h.Reservations.Create(r.Context(), in.BookID, in.VolumeID)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	h.Log.WithFields(logrus.Fields{"book": in.BookID, "reservation": res.ID}).Info("reservation created")
	httpx.Created(w, res)
}

// Cancel serves DELETE /reservations/{id}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Reservations.Cancel(r.Context(), r.PathValue("id")); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OKNoData(w)
}
