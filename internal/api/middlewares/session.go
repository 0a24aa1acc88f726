package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/session"
)

const SessionCookie = "lw_sid"

type SessionConfig struct {
	Store         session.Scoper
	Auth          session.Authenticator
	TTL           time.Duration
	RedirectDelay time.Duration
	CookieSecure  bool
	CacheSize     int
	Logger        *logrus.Entry
}

// Sessions binds every request to a browser session id and the Provider that
// owns it. Providers are shared across concurrent requests of one sid so the
// single-login guard holds per browser.
type Sessions struct {
	cfg SessionConfig

	mu        sync.Mutex
	providers *lru.Cache
}

func NewSessions(cfg SessionConfig) (*Sessions, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Sessions{cfg: cfg, providers: c}, nil
}

func (s *Sessions) provider(sid string, fp backend.Fingerprint) *session.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.providers.Get(sid); ok {
		return v.(*session.Provider)
	}
	p := session.NewProvider(s.cfg.Store.Scope(sid), s.cfg.Auth, session.Options{
		DefaultTTL:    s.cfg.TTL,
		RedirectDelay: s.cfg.RedirectDelay,
		Fingerprint:   fp,
		Notify:        collectNotice,
		Logger:        s.cfg.Logger.WithField("sid", shortSID(sid)),
	})
	s.providers.Add(sid, p)
	return p
}

// Middleware loads or mints the sid cookie and puts the browser fingerprint,
// the Provider and a notice collector in the request context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				sid = c.Value
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := r.Context()
		fp, ok := backend.FingerprintFromRequest(r)
		if ok {
			ctx = backend.WithFingerprint(ctx, fp)
		}
		ctx = context.WithValue(ctx, ctxKeySID, sid)
		ctx = context.WithValue(ctx, ctxKeyNotices, &Notices{})
		ctx = session.WithProvider(ctx, s.provider(sid, fp))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SIDFrom returns the browser session id bound by Sessions.Middleware.
func SIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeySID).(string)
	return v, ok && v != ""
}

// Notices collects the session notices raised while serving one request.
type Notices struct {
	mu   sync.Mutex
	list []session.Notice
}

func (n *Notices) add(v session.Notice) {
	n.mu.Lock()
	n.list = append(n.list, v)
	n.mu.Unlock()
}

// Last returns the most recent notice, or nil.
func (n *Notices) Last() *session.Notice {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.list) == 0 {
		return nil
	}
	v := n.list[len(n.list)-1]
	return &v
}

func NoticesFrom(ctx context.Context) *Notices {
	n, _ := ctx.Value(ctxKeyNotices).(*Notices)
	return n
}

func collectNotice(ctx context.Context, n session.Notice) {
	if ns := NoticesFrom(ctx); ns != nil {
		ns.add(n)
	}
}

// WriteError writes err as a problem, attaching any notice raised during the
// request.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apperr.Write(w, r, apperr.FromError(err, NoticesFrom(r.Context()).Last()))
}

// CurrentSession returns the session RequireAuth verified.
func CurrentSession(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(session.Session)
	return s, ok
}

// RequireAuth rejects requests without a live session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := session.FromContext(r.Context())
		if !ok {
			WriteError(w, r, session.ErrNoSession)
			return
		}
		s, err := p.Current(r.Context())
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				err = session.ErrNoSession
			}
			WriteError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeySession, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is RequireAuth plus a role check. Roles compare
// case-insensitively.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, _ := CurrentSession(r.Context())
			for _, role := range roles {
				if strings.EqualFold(role, s.Info.User.Role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			apperr.WriteStatus(w, r, http.StatusForbidden, "Forbidden",
				"You do not have permission to do that.")
		}))
	}
}

func shortSID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
