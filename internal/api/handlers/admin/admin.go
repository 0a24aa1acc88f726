// Package admin serves catalog and user management.
package admin

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/handlers/crud"
	"github.com/5w1tchy/library-web/internal/api/handlers/forms"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/cache"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
	"github.com/5w1tchy/library-web/internal/validate"
)

type Handler struct {
	Catalog  *services.Catalog
	Users    *services.Users
	Options  *cache.Cache
	PageSize int
	Log      *logrus.Entry
}

// Mount registers /admin/* behind the given role gates. staff may manage the
// catalog; admin alone manages users.
func (h *Handler) Mount(mux *http.ServeMux, staff, admin func(http.Handler) http.Handler) {
	bump := h.bumpOnWrite
	staffWrite := func(next http.Handler) http.Handler { return staff(bump(next)) }

	for name, coll := range h.Catalog.Attributes() {
		(&crud.Handler[services.Attribute]{
			Coll: coll, Search: services.NameSearch, Check: forms.Attribute, PageSize: h.PageSize,
		}).Mount(mux, "/admin/"+name, staff, staffWrite)
	}
	(&crud.Handler[services.Publisher]{
		Coll: h.Catalog.Publishers, Search: services.NameSearch, Check: forms.Publisher, PageSize: h.PageSize,
	}).Mount(mux, "/admin/publishers", staff, staffWrite)
	(&crud.Handler[services.Author]{
		Coll: h.Catalog.Authors, Search: services.AuthorSearch, Check: forms.Author, PageSize: h.PageSize,
	}).Mount(mux, "/admin/authors", staff, staffWrite)

	(&crud.Handler[services.User]{
		Coll: h.Users, Search: services.UserSearch, Check: forms.User, PageSize: h.PageSize,
	}).Mount(mux, "/admin/users", admin, admin)
	mux.Handle("PUT /admin/users/{id}/role", admin(http.HandlerFunc(h.SetRole)))
}

// SetRole serves PUT /admin/users/{id}/role.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Role string `json:"role"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	var v validate.Errors
	role := v.OneOf("role", in.Role, services.Roles)
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if s, ok := mw.CurrentSession(r.Context()); ok && s.Info.User.ID == id && role != session.RoleAdmin {
		mw.WriteError(w, r, validate.Errors{{
			Field: "role", Code: "self_demotion", Message: "You cannot remove your own admin role.",
		}})
		return
	}
	if err := h.Users.SetRole(r.Context(), id, role); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	h.Log.WithFields(logrus.Fields{"user": id, "role": role}).Info("role changed")
	httpx.OK(w, map[string]string{"id": id, "role": role})
}

// bumpOnWrite invalidates cached dropdown options after a successful write.
func (h *Handler) bumpOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status < 300 && h.Options != nil {
			h.Options.Bump(r.Context())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
