package crud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/validate"
)

type thing struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// memory is an in-process Collection.
type memory struct {
	mu     sync.Mutex
	next   int64
	things map[int64]thing
	crit   []odata.Criteria
}

func newMemory(names ...string) *memory {
	m := &memory{things: map[int64]thing{}}
	for _, n := range names {
		m.next++
		m.things[m.next] = thing{ID: m.next, Name: n}
	}
	return m
}

func (m *memory) Name() string { return "Thing" }

func (m *memory) sorted() []thing {
	out := make([]thing, 0, len(m.things))
	for _, t := range m.things {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memory) List(context.Context, odata.Query) (backend.Page[thing], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	return backend.Page[thing]{Items: all, Total: len(all)}, nil
}

func (m *memory) All(context.Context, string) ([]thing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(), nil
}

func (m *memory) Get(_ context.Context, id string) (thing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(id, 10, 64)
	t, ok := m.things[n]
	if !ok {
		return thing{}, &backend.HTTPError{Status: http.StatusNotFound, Message: "Thing not found."}
	}
	return t, nil
}

func (m *memory) Create(_ context.Context, v thing) (thing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	v.ID = m.next
	m.things[v.ID] = v
	return v, nil
}

func (m *memory) Update(ctx context.Context, id string, v thing) (thing, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return thing{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID, _ = strconv.ParseInt(id, 10, 64)
	m.things[v.ID] = v
	return v, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(id, 10, 64)
	delete(m.things, n)
	return nil
}

func (m *memory) Fetcher(b odata.Builder) paging.Fetcher[thing, odata.Criteria] {
	return func(_ context.Context, c odata.Criteria, win paging.Window) (backend.Page[thing], error) {
		if _, err := b.Build(c); err != nil {
			return backend.Page[thing]{}, err
		}
		m.mu.Lock()
		m.crit = append(m.crit, c)
		var hits []thing
		for _, t := range m.sorted() {
			if strings.Contains(strings.ToLower(t.Name), strings.ToLower(c["search"])) {
				hits = append(hits, t)
			}
		}
		m.mu.Unlock()
		end := win.Offset + win.PageSize
		if end > len(hits) {
			end = len(hits)
		}
		if win.Offset > len(hits) {
			return backend.Page[thing]{Total: len(hits)}, nil
		}
		return backend.Page[thing]{Items: hits[win.Offset:end], Total: len(hits)}, nil
	}
}

func (m *memory) SlicedFetcher(b odata.Builder) paging.Fetcher[thing, odata.Criteria] {
	return m.Fetcher(b)
}

var search = odata.NewBuilder(
	odata.Field{Key: "search", Path: "Name", Kind: odata.Contains},
	odata.Field{Key: "year", Path: "Year", Kind: odata.Number},
)

func checkThing(t *thing) error {
	var v validate.Errors
	t.Name = v.Bounded("name", t.Name, 1, 20)
	return v.Err()
}

func newServer(m *memory) http.Handler {
	mux := http.NewServeMux()
	open := func(next http.Handler) http.Handler { return next }
	(&Handler[thing]{
		Coll: m, Search: search, Check: checkThing, PageSize: 2,
		Decorate: func(_ *http.Request, v *thing) { v.Name = strings.ToUpper(v.Name[:1]) + v.Name[1:] },
	}).Mount(mux, "things/", open, open)
	return mux
}

func call(h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestListPagesAndFilters(t *testing.T) {
	m := newMemory("ulysses", "dubliners", "dune", "emma")
	h := newServer(m)

	rec, out := call(h, "GET", "/things", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]any)
	assert.Len(t, data["items"], 2)
	assert.EqualValues(t, 4, data["totalCount"])
	assert.Equal(t, true, data["hasMore"])
	assert.Equal(t, "Ulysses", data["items"].([]any)[0].(map[string]any)["name"], "views are decorated")

	_, out = call(h, "GET", "/things?search=du&limit=10", "")
	data = out["data"].(map[string]any)
	assert.Len(t, data["items"], 2)
	assert.Equal(t, false, data["hasMore"])
	assert.Equal(t, "du", m.crit[len(m.crit)-1]["search"])

	_, out = call(h, "GET", "/things?offset=3&limit=2", "")
	data = out["data"].(map[string]any)
	assert.Len(t, data["items"], 1)

	rec, _ = call(h, "GET", "/things?year=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmptyListIsArray(t *testing.T) {
	h := newServer(newMemory())
	rec, _ := call(h, "GET", "/things", "")
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestCreateUpdateDelete(t *testing.T) {
	m := newMemory()
	h := newServer(m)

	rec, out := call(h, "POST", "/things", `{"name":"  persuasion "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "persuasion", out["data"].(map[string]any)["name"], "forms are trimmed")

	rec, out = call(h, "POST", "/things", `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, out["field_errors"])

	rec, _ = call(h, "POST", "/things", `{"name":"x","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(h, "PUT", "/things/1", `{"name":"emma"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, out = call(h, "GET", "/things/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Emma", out["data"].(map[string]any)["name"])

	rec, _ = call(h, "DELETE", "/things/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, out = call(h, "GET", "/things/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Thing not found.", out["detail"])
}
