package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/cache"
	"github.com/5w1tchy/library-web/internal/services"
)

func TestOptionsAreCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/Category":
			_, _ = w.Write([]byte(`{"$values":[{"Id":1,"Name":"Poetry"},{"Id":2,"Name":"Drama"}]}`))
		case "/Author":
			_, _ = w.Write([]byte(`[{"Id":4,"FullName":"James Joyce"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	l, _ := test.NewNullLogger()
	log := logrus.NewEntry(l)
	c, err := backend.New(backend.Config{BaseURL: srv.URL, Logger: log})
	require.NoError(t, err)
	opts, err := cache.New(nil, time.Minute, log)
	require.NoError(t, err)

	mux := http.NewServeMux()
	open := func(next http.Handler) http.Handler { return next }
	(&Handler{Catalog: services.NewCatalog(c), Cache: opts}).Routes(mux, open)

	get := func(path string) (int, []Option) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		var out struct {
			Data []Option `json:"data"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		return rec.Code, out.Data
	}

	code, got := get("/catalog/categories")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []Option{{ID: 1, Name: "Poetry"}, {ID: 2, Name: "Drama"}}, got)
	_, got = get("/catalog/categories")
	assert.Len(t, got, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second read is served from cache")

	opts.Bump(t.Context())
	get("/catalog/categories")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "a bump invalidates")

	_, got = get("/catalog/authors")
	assert.Equal(t, []Option{{ID: 4, Name: "James Joyce"}}, got)

	code, _ = get("/catalog/genres")
	assert.Equal(t, http.StatusNotFound, code)
}
