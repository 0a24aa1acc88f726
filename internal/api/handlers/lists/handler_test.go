package lists

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/session"
)

type stubAuth struct{ role string }

func (a stubAuth) Login(_ context.Context, c session.Credentials) (session.LoginResult, error) {
	return session.LoginResult{
		Token:      "tok",
		Expiration: time.Now().Add(time.Hour),
		User:       session.User{ID: "1", Email: c.Email, Role: a.role},
	}, nil
}

func (stubAuth) Logout(context.Context, string) error { return nil }

type harness struct {
	t      *testing.T
	h      http.Handler
	reg    *Registry
	cookie *http.Cookie
}

func newHarness(t *testing.T, role string, defs ...Def) *harness {
	t.Helper()
	reg, err := NewRegistry(Options{PageSize: 10, Debounce: 10 * time.Millisecond, Logger: quietLogger()}, defs...)
	require.NoError(t, err)
	sessions, err := mw.NewSessions(mw.SessionConfig{
		Store: session.NewMemoryScoper(), Auth: stubAuth{role: role}, Logger: quietLogger(),
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		p, _ := session.FromContext(r.Context())
		_, err := p.Login(r.Context(), session.Credentials{Email: "ada@example.com", Password: "pw"})
		require.NoError(t, err)
	})
	(&Handler{Reg: reg}).Routes(mux, mw.RequireAuth)

	hs := &harness{t: t, h: sessions.Middleware(mux), reg: reg}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, httptest.NewRequest("POST", "/login", nil))
	for _, c := range rec.Result().Cookies() {
		if c.Name == mw.SessionCookie {
			hs.cookie = c
		}
	}
	require.NotNil(t, hs.cookie)
	return hs
}

type viewBody struct {
	Status string `json:"status"`
	Data   struct {
		Items      []int  `json:"items"`
		TotalCount int    `json:"totalCount"`
		HasMore    bool   `json:"hasMore"`
		Status     string `json:"status"`
		Sentinel   string `json:"sentinel"`
		Pending    bool   `json:"pending"`
		Error      string `json:"error"`
	} `json:"data"`
}

func (hs *harness) do(method, path, body string) (int, viewBody) {
	hs.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(hs.cookie)
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	var v viewBody
	_ = json.Unmarshal(rec.Body.Bytes(), &v)
	return rec.Code, v
}

func TestHandlerInfiniteScroll(t *testing.T) {
	hs := newHarness(t, session.RoleMember, Define("nums", numbers(25), ""))

	code, v := hs.do("GET", "/lists/nums", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", v.Status)
	assert.Len(t, v.Data.Items, 10)
	assert.Equal(t, 25, v.Data.TotalCount)
	assert.Equal(t, "ready", v.Data.Status)
	require.NotEmpty(t, v.Data.Sentinel)

	code, v = hs.do("POST", "/lists/nums/sentinel", `{"sentinel":"`+v.Data.Sentinel+`","intersecting":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, v.Data.Items, 20)

	// A stale sentinel id is ignored.
	_, v = hs.do("POST", "/lists/nums/sentinel", `{"sentinel":"nums-g1-o10","intersecting":true}`)
	assert.Len(t, v.Data.Items, 20)

	_, v = hs.do("POST", "/lists/nums/sentinel", `{"sentinel":"`+v.Data.Sentinel+`","intersecting":true}`)
	assert.Len(t, v.Data.Items, 25)
	assert.Equal(t, "end", v.Data.Status)
	assert.Empty(t, v.Data.Sentinel)
}

func TestHandlerDebouncedFilters(t *testing.T) {
	hs := newHarness(t, session.RoleMember, Define("nums", numbers(25), ""))
	hs.do("GET", "/lists/nums", "")

	code, v := hs.do("PUT", "/lists/nums/filters", `"small"`)
	require.Equal(t, http.StatusAccepted, code)
	assert.True(t, v.Data.Pending)

	require.Eventually(t, func() bool {
		_, v := hs.do("GET", "/lists/nums", "")
		return !v.Data.Pending && v.Data.TotalCount == 5
	}, time.Second, 5*time.Millisecond)

	code, _ = hs.do("PUT", "/lists/nums/filters", `{"bad":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, v = hs.do("POST", "/lists/nums/refresh", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, v.Data.Items, 5)
}

func TestHandlerUnknownAndForbidden(t *testing.T) {
	hs := newHarness(t, session.RoleMember,
		Define("nums", numbers(5), ""),
		Define("users", numbers(5), "", session.RoleAdmin))

	code, _ := hs.do("GET", "/lists/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = hs.do("GET", "/lists/users", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 0, hs.reg.Len())
}

func TestHandlerEmptyList(t *testing.T) {
	hs := newHarness(t, session.RoleMember, Define("nums", numbers(0), ""))
	_, v := hs.do("GET", "/lists/nums", "")
	assert.Equal(t, "empty", v.Data.Status)
	assert.Empty(t, v.Data.Sentinel)
}

func TestHandlerSessionLossPurgesLists(t *testing.T) {
	expired := func(context.Context, string, paging.Window) (backend.Page[int], error) {
		return backend.Page[int]{}, session.ErrNoSession
	}
	hs := newHarness(t, session.RoleMember, Define("nums", expired, ""), Define("other", numbers(5), ""))
	hs.do("GET", "/lists/other", "")
	require.Equal(t, 1, hs.reg.Len())

	code, _ := hs.do("GET", "/lists/nums", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 0, hs.reg.Len())
}

func TestHandlerLoadErrorStaysInView(t *testing.T) {
	broken := func(context.Context, string, paging.Window) (backend.Page[int], error) {
		return backend.Page[int]{}, backend.ErrNetwork
	}
	hs := newHarness(t, session.RoleMember, Define("nums", broken, ""))
	code, v := hs.do("GET", "/lists/nums", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "error", v.Data.Status)
	assert.NotEmpty(t, v.Data.Error)
}
