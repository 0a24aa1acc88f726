package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/cache"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
)

type stubLogin struct{ role string }

func (a stubLogin) Login(_ context.Context, c session.Credentials) (session.LoginResult, error) {
	return session.LoginResult{
		Token:      "tok",
		Expiration: time.Now().Add(time.Hour),
		User:       session.User{ID: "1", Email: c.Email, Role: a.role},
	}, nil
}

func (stubLogin) Logout(context.Context, string) error { return nil }

type harness struct {
	t       *testing.T
	h       http.Handler
	cookie  *http.Cookie
	opts    *cache.Cache
	backend *int32
}

func newHarness(t *testing.T, role string) *harness {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "PUT /User/2/Role":
			w.WriteHeader(http.StatusNoContent)
		case "POST /Category":
			_, _ = w.Write([]byte(`{"Id":3,"Name":"Poetry"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	l, _ := test.NewNullLogger()
	log := logrus.NewEntry(l)
	c, err := backend.New(backend.Config{BaseURL: srv.URL, Logger: log})
	require.NoError(t, err)
	opts, err := cache.New(nil, time.Minute, log)
	require.NoError(t, err)
	sessions, err := mw.NewSessions(mw.SessionConfig{
		Store: session.NewMemoryScoper(), Auth: stubLogin{role: role}, Logger: log,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		p, _ := session.FromContext(r.Context())
		_, err := p.Login(r.Context(), session.Credentials{Email: "root@example.com", Password: "pw"})
		require.NoError(t, err)
	})
	(&Handler{
		Catalog: services.NewCatalog(c), Users: services.NewUsers(c), Options: opts, Log: log,
	}).Mount(mux,
		mw.RequireRole(session.RoleAdmin, session.RoleLibrarian),
		mw.RequireRole(session.RoleAdmin))

	hs := &harness{t: t, h: sessions.Middleware(mux), opts: opts, backend: &calls}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, httptest.NewRequest("POST", "/login", nil))
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == mw.SessionCookie {
			hs.cookie = ck
		}
	}
	require.NotNil(t, hs.cookie)
	return hs
}

func (hs *harness) do(method, path, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(hs.cookie)
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestSetRole(t *testing.T) {
	hs := newHarness(t, session.RoleAdmin)

	code, out := hs.do("PUT", "/admin/users/2/role", `{"role":"librarian"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Librarian", out["data"].(map[string]any)["role"])

	code, _ = hs.do("PUT", "/admin/users/2/role", `{"role":"owner"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, out = hs.do("PUT", "/admin/users/1/role", `{"role":"Member"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	fe := out["field_errors"].([]any)[0].(map[string]any)
	assert.Equal(t, "self_demotion", fe["code"])
}

func TestUsersAreAdminOnly(t *testing.T) {
	hs := newHarness(t, session.RoleLibrarian)
	code, _ := hs.do("PUT", "/admin/users/2/role", `{"role":"Member"}`)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = hs.do("GET", "/admin/users", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.EqualValues(t, 0, atomic.LoadInt32(hs.backend))
}

func TestCatalogWriteBumpsOptions(t *testing.T) {
	hs := newHarness(t, session.RoleLibrarian)
	ctx := context.Background()
	hs.opts.Set(ctx, "categories", []string{"stale"})

	code, _ := hs.do("POST", "/admin/categories", `{"name":"Poetry"}`)
	require.Equal(t, http.StatusCreated, code)

	var got []string
	assert.False(t, hs.opts.Get(ctx, "categories", &got), "write invalidates cached options")

	hs.opts.Set(ctx, "categories", []string{"fresh"})
	code, _ = hs.do("POST", "/admin/categories", `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.True(t, hs.opts.Get(ctx, "categories", &got), "failed writes keep the cache")
}
