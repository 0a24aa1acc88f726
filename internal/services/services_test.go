package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/session"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

type callLog struct {
	mu   sync.Mutex
	list []recorded
}

func (c *callLog) add(r recorded) {
	c.mu.Lock()
	c.list = append(c.list, r)
	c.mu.Unlock()
}

func (c *callLog) get() []recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recorded(nil), c.list...)
}

func fakeBackend(t *testing.T, routes map[string]string) (*backend.Client, *callLog) {
	t.Helper()
	calls := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		calls.add(rec)
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
			return
		}
		if body == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	l, _ := test.NewNullLogger()
	c, err := backend.New(backend.Config{
		BaseURL: srv.URL,
		Token:   func(context.Context) string { return "tok" },
		Logger:  logrus.NewEntry(l),
	})
	require.NoError(t, err)
	return c, calls
}

func TestBookCopiesListPage(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{
		"GET /BookCopy": `{"totalCount":25,"items":{"$values":[
			{"Id":11,"VolumeId":3,"BookTitle":"Dubliners","CopyStatus":"Available","Location":"Floor 2, Shelf B","PublicationYear":1914}
		]}}`,
	})
	copies := NewBookCopies(c)

	page, err := copies.ListPage(context.Background(),
		CopyFilters{Search: "O'Brien", CopyStatus: "available", Floor: "2"},
		paging.Window{Offset: 10, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	require.Len(t, page.Items, 1)
	got := page.Items[0]
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, "Available", got.Status)
	assert.Equal(t, Location{Floor: "2", Shelf: "B", Raw: "Floor 2, Shelf B"}, got.Location)

	require.Len(t, calls.get(), 1)
	call := calls.get()[0]
	assert.Equal(t, "Bearer tok", call.Auth)
	assert.Equal(t,
		"$top=10&$skip=10&$filter=contains%28tolower%28BookTitle%29%2C%20%27o%27%27brien%27%29%20and%20CopyStatus%20eq%20%27Available%27%20and%20%28contains%28tolower%28Location%29%2C%20%27floor%202%27%29%29&$orderby=Id&$count=true",
		call.Query)
}

func TestBookCopiesRejectsBadFilters(t *testing.T) {
	c, calls := fakeBackend(t, nil)
	_, err := NewBookCopies(c).ListPage(context.Background(), CopyFilters{PublicationYear: "nineteen"}, paging.Window{PageSize: 10})
	assert.ErrorIs(t, err, odata.ErrInvalidValue)
	assert.Empty(t, calls.get(), "invalid filters never reach the backend")
}

func TestSetCopyStatus(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{"PUT /BookCopy/7/Status": ""})
	copies := NewBookCopies(c)
	require.NoError(t, copies.SetStatus(context.Background(), "7", "lost"))
	assert.Equal(t, "Lost", calls.get()[0].Body["CopyStatus"])

	assert.ErrorIs(t, copies.SetStatus(context.Background(), "7", "stolen"), odata.ErrInvalidValue)
}

func TestLocationRoundTrip(t *testing.T) {
	assert.Equal(t, "Floor 3, Shelf A-12", ParseLocation("floor 3; SHELF A-12").String())
	assert.Equal(t, "Basement", ParseLocation("Basement").String())
	assert.Equal(t, "", Location{}.String())
}

func TestCatalogCRUDTranslatesModels(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{
		"GET /Category":       `[{"Id":1,"Name":"Poetry"},{"Id":2,"Name":"Drama"}]`,
		"GET /Category/1":     `{"Id":1,"Name":"Poetry"}`,
		"POST /Publisher":     `{"Id":9,"Name":"Faber","Address":"London"}`,
		"PUT /Edition/4":      ``,
		"DELETE /CoverType/5": ``,
	})
	cat := NewCatalog(c)
	ctx := context.Background()

	page, err := cat.Categories.List(ctx, odata.Query{})
	require.NoError(t, err)
	assert.Equal(t, []Attribute{{ID: 1, Name: "Poetry"}, {ID: 2, Name: "Drama"}}, page.Items)
	assert.Equal(t, 2, page.Total)

	one, err := cat.Categories.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Poetry", one.Name)

	pub, err := cat.Publishers.Create(ctx, Publisher{Name: "Faber", Address: "London"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), pub.ID)
	assert.Equal(t, "Faber", calls.get()[2].Body["Name"])
	assert.Equal(t, "London", calls.get()[2].Body["Address"])

	ed, err := cat.Editions.Update(ctx, "4", Attribute{ID: 4, Name: "Second"})
	require.NoError(t, err)
	assert.Equal(t, "Second", ed.Name, "empty response echoes the input")

	require.NoError(t, cat.CoverTypes.Delete(ctx, "5"))
	assert.Len(t, cat.Attributes(), 4)
}

func TestBookTranslation(t *testing.T) {
	w := bookWire{
		ID: 1, Title: "Ulysses", Isbn: "9780199535675", PublicationYear: 1922,
		CategoryID: 2, CategoryName: "Novel",
		Authors: []authorRefWire{{ID: 5, FullName: "James Joyce"}},
	}
	b := bookView(w)
	assert.Equal(t, &Attribute{ID: 2, Name: "Novel"}, b.Category)
	assert.Nil(t, b.Publisher)
	assert.Equal(t, []Attribute{{ID: 5, Name: "James Joyce"}}, b.Authors)

	back := bookToWire(b)
	assert.Equal(t, int64(2), back.CategoryID)
	assert.Equal(t, []int64{5}, back.AuthorIDs)
	assert.Nil(t, back.Authors)
}

func TestVolumesOf(t *testing.T) {
	c, _ := fakeBackend(t, map[string]string{
		"GET /Book/3/Volumes": `{"$values":[{"Id":1,"BookId":3,"VolumeNumber":1},{"Id":2,"BookId":3,"VolumeNumber":2}]}`,
	})
	vols, err := NewBooks(c).VolumesOf(context.Background(), "3")
	require.NoError(t, err)
	require.Len(t, vols, 2)
	assert.Equal(t, 2, vols[1].Number)
}

func TestAuthLoginIsAnonymous(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{
		"POST /Auth/login": `{"Token":"jwt","Expiration":"2026-05-01T10:00:00","User":{"Id":"u-1","FullName":"Ada","Email":"ada@example.com","Role":"Admin"}}`,
	})
	res, err := NewAuth(c).Login(context.Background(), session.Credentials{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), res.Expiration)
	assert.Equal(t, session.User{ID: "u-1", Name: "Ada", Email: "ada@example.com", Role: "Admin"}, res.User)

	call := calls.get()[0]
	assert.Empty(t, call.Auth)
	assert.Equal(t, "ada@example.com", call.Body["Email"])
}

func TestAuthLogoutSendsExplicitToken(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{"POST /Auth/logout": ""})
	require.NoError(t, NewAuth(c).Logout(context.Background(), "explicit"))
	assert.Equal(t, "Bearer explicit", calls.get()[0].Auth)
}

func TestPasswordResetFlow(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{
		"POST /Auth/forgot-password": `{"Message":"Code sent"}`,
		"POST /Auth/verify-otp":      `{"ResetToken":"rt"}`,
		"POST /Auth/reset-password":  `{"Message":"Password updated"}`,
	})
	a := NewAuth(c)
	ctx := context.Background()

	ack, err := a.RequestPasswordReset(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "Code sent", ack.Message)

	rt, err := a.VerifyOTP(ctx, "a@b.c", "123456")
	require.NoError(t, err)
	assert.Equal(t, "rt", rt)

	ack, err = a.ResetPassword(ctx, "a@b.c", rt, "n3w-Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, "Password updated", ack.Message)
	assert.Equal(t, "123456", calls.get()[1].Body["Otp"])
	for _, call := range calls.get() {
		assert.Empty(t, call.Auth)
	}
}

func TestReservations(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{
		"GET /Reservation/my":   `{"value":[{"Id":1,"BookId":2,"BookTitle":"Emma","Status":"Pending","QueuePosition":3,"ReservationDate":"2026-01-02T03:04:05Z"}],"@odata.count":1}`,
		"POST /Reservation":     `{"Id":2,"BookId":2,"Status":"Pending","ReservationDate":"2026-01-03T00:00:00"}`,
		"DELETE /Reservation/2": ``,
	})
	r := NewReservations(c)
	ctx := context.Background()

	page, err := r.ListFetcher()(ctx, odata.Criteria{"status": "pending"}, paging.Window{PageSize: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Items[0].QueuePosition)
	assert.Nil(t, page.Items[0].ExpiresAt)
	assert.Contains(t, calls.get()[0].Query, "Status%20eq%20%27Pending%27")

	res, err := r.Create(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.ID)
	assert.EqualValues(t, 2, calls.get()[1].Body["BookId"])
	_, hasVolume := calls.get()[1].Body["VolumeId"]
	assert.False(t, hasVolume)

	require.NoError(t, r.Cancel(ctx, "2"))
}

func TestSlicedFetcherPagesLocally(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{
		"GET /Author": `[{"Id":1,"FullName":"A"},{"Id":2,"FullName":"B"},{"Id":3,"FullName":"C"}]`,
	})
	f := NewCatalog(c).Authors.SlicedFetcher(AuthorSearch)
	page, err := f(context.Background(), odata.Criteria{}, paging.Window{Offset: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "C", page.Items[0].FullName)
	assert.NotContains(t, calls.get()[0].Query, "$top")
}

func TestUsersSetRole(t *testing.T) {
	c, calls := fakeBackend(t, map[string]string{"PUT /User/abc/Role": ""})
	require.NoError(t, NewUsers(c).SetRole(context.Background(), "abc", "Librarian"))
	assert.Equal(t, "Librarian", calls.get()[0].Body["Role"])
}

func TestWireTime(t *testing.T) {
	var w struct {
		A wireTime `json:"a"`
		B wireTime `json:"b"`
		C wireTime `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2026-01-02T03:04:05.1234567","b":null,"c":""}`), &w))
	assert.Equal(t, 2026, w.A.Year())
	assert.True(t, w.B.IsZero())
	assert.True(t, w.C.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`{"a":"yesterday"}`), &w))
}
