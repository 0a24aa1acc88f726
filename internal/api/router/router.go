// Package router assembles the BFF routes and middleware stack.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/handlers/auth"
	"github.com/5w1tchy/library-web/internal/api/handlers/books"
	"github.com/5w1tchy/library-web/internal/api/handlers/catalog"
	"github.com/5w1tchy/library-web/internal/api/handlers/lists"
	"github.com/5w1tchy/library-web/internal/api/handlers/reservations"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/cache"
	"github.com/5w1tchy/library-web/internal/config"
	"github.com/5w1tchy/library-web/internal/services"
)

// Services are the typed backend services the handlers call.
type Services struct {
	Auth         *services.Auth
	Catalog      *services.Catalog
	Books        *services.Books
	Copies       *services.BookCopies
	Users        *services.Users
	Reservations *services.Reservations
}

type Deps struct {
	Config   config.Config
	Log      *logrus.Logger
	Redis    *redis.Client // nil without REDIS_URL
	Services Services
	Sessions *mw.Sessions
	Lists    *lists.Registry
	Limiter  mw.Limiter
	Options  *cache.Cache
	Covers   books.Covers // nil without object storage
}

// Router returns the fully wrapped handler.
func Router(d Deps) http.Handler {
	mux := http.NewServeMux()
	csrf := mw.DefaultCSRFOptions(d.Config.CookieSecure)

	mux.HandleFunc("GET /healthz", health(d.Redis))
	mux.HandleFunc("GET /csrf", mw.CSRFTokenHandler(csrf))

	(&auth.Handler{
		Auth:          d.Services.Auth,
		OnSignOut:     d.Lists.Purge,
		RedirectDelay: d.Config.RedirectDelay,
		Log:           d.Log.WithField("component", "auth"),
	}).Routes(mux, mw.LoginRateLimit(d.Limiter, d.Log.WithField("component", "ratelimit")), mw.RequireAuth)

	(&lists.Handler{Reg: d.Lists}).Routes(mux, mw.RequireAuth)
	(&reservations.Handler{
		Reservations: d.Services.Reservations,
		PageSize:     d.Config.PageSize,
		Log:          d.Log.WithField("component", "reservations"),
	}).Routes(mux, mw.RequireAuth)
	(&catalog.Handler{Catalog: d.Services.Catalog, Cache: d.Options}).Routes(mux, mw.RequireAuth)

	mountAdmin(mux, d)

	httpLog := d.Log.WithField("component", "http")
	return mw.Chain(mux,
		mw.RequestID,
		mw.Recovery(httpLog),
		mw.AccessLog(httpLog),
		mw.ResponseTime,
		mw.SecurityHeaders(d.Config.Production()),
		mw.CORS(d.Config.AllowedOrigins, httpLog),
		mw.BodySizeLimit(d.Config.MaxBodySize),
		mw.Compression,
		mw.CSRF(csrf),
		d.Sessions.Middleware,
	)
}

func health(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]string{"backend": "remote", "redis": "disabled"}
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				out["redis"] = "down"
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "data": out})
				return
			}
			out["redis"] = "up"
		}
		httpx.OK(w, out)
	}
}
