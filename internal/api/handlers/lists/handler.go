package lists

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
)

type sentinelReport struct {
	Sentinel     string `json:"sentinel"`
	Intersecting bool   `json:"intersecting"`
}

// Handler serves /lists/{list}. Routes must sit behind RequireAuth.
type Handler struct {
	Reg *Registry
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (list, bool) {
	name := r.PathValue("list")
	def, ok := h.Reg.Def(name)
	if !ok {
		apperr.WriteStatus(w, r, http.StatusNotFound, "Unknown list", "No list named "+name+".")
		return nil, false
	}
	if len(def.Roles) > 0 {
		s, _ := mw.CurrentSession(r.Context())
		allowed := false
		for _, role := range def.Roles {
			if strings.EqualFold(role, s.Info.User.Role) {
				allowed = true
			}
		}
		if !allowed {
			apperr.WriteStatus(w, r, http.StatusForbidden, "Forbidden", "You do not have access to this list.")
			return nil, false
		}
	}
	sid, _ := mw.SIDFrom(r.Context())
	l, err := h.Reg.get(sid, name)
	if err != nil {
		mw.WriteError(w, r, err)
		return nil, false
	}
	return l, true
}

// respond writes the view. A relogin failure is returned as a problem so the
// page can follow the notice; other load errors live in the view.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, l list, status int, err error) {
	if err != nil {
		if p := apperr.FromError(err, mw.NoticesFrom(r.Context()).Last()); p.RequireRelogin || p.Status == http.StatusUnauthorized {
			sid, _ := mw.SIDFrom(r.Context())
			h.Reg.Purge(sid)
			apperr.Write(w, r, p)
			return
		}
	}
	httpx.WriteJSON(w, status, map[string]any{"status": "success", "data": l.view()})
}

// Get serves GET /lists/{list}; the first view runs the initial load.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	l, ok := h.resolve(w, r)
	if !ok {
		return
	}
	err := l.ensureLoaded(r.Context())
	h.respond(w, r, l, http.StatusOK, err)
}

// SetFilters serves PUT /lists/{list}/filters. The reload is debounced, so
// the answer is 202 with the pending view.
func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	l, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		apperr.WriteStatus(w, r, status, "Invalid filters", err.Error())
		return
	}
	if err := l.setFilters(r.Context(), raw); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid filters", err.Error())
		return
	}
	h.respond(w, r, l, http.StatusAccepted, nil)
}

// Refresh serves POST /lists/{list}/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	l, ok := h.resolve(w, r)
	if !ok {
		return
	}
	err := l.refresh(r.Context())
	h.respond(w, r, l, http.StatusOK, err)
}

// Sentinel serves POST /lists/{list}/sentinel with a visibility report.
func (h *Handler) Sentinel(w http.ResponseWriter, r *http.Request) {
	l, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var rep sentinelReport
	if err := httpx.DecodeJSON(r, &rep); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid sentinel report", err.Error())
		return
	}
	err := l.observe(r.Context(), rep.Sentinel, rep.Intersecting)
	h.respond(w, r, l, http.StatusOK, err)
}

// Routes mounts the handlers; wrap wraps every route (auth).
func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /lists/{list}", wrap(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /lists/{list}/filters", wrap(http.HandlerFunc(h.SetFilters)))
	mux.Handle("POST /lists/{list}/refresh", wrap(http.HandlerFunc(h.Refresh)))
	mux.Handle("POST /lists/{list}/sentinel", wrap(http.HandlerFunc(h.Sentinel)))
}
