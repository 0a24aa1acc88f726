package router

import (
	"net/http"

	"github.com/5w1tchy/library-web/internal/api/handlers/admin"
	"github.com/5w1tchy/library-web/internal/api/handlers/books"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/session"
)

// mountAdmin wires catalog management behind the staff roles and user
// management behind Admin. Book writes share the staff gate.
func mountAdmin(mux *http.ServeMux, d Deps) {
	staff := mw.RequireRole(session.RoleAdmin, session.RoleLibrarian)
	adminOnly := mw.RequireRole(session.RoleAdmin)

	(&admin.Handler{
		Catalog:  d.Services.Catalog,
		Users:    d.Services.Users,
		Options:  d.Options,
		PageSize: d.Config.PageSize,
		Log:      d.Log.WithField("component", "admin"),
	}).Mount(mux, staff, adminOnly)

	(&books.Handler{
		Books:    d.Services.Books,
		Copies:   d.Services.Copies,
		Covers:   d.Covers,
		PageSize: d.Config.PageSize,
		Log:      d.Log.WithField("component", "books"),
	}).Mount(mux, mw.RequireAuth, staff)
}
