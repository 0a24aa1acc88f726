package apperr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/session"
	"github.com/5w1tchy/library-web/internal/validate"
)

func TestFromErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&backend.HTTPError{Status: 404, Message: "Book not found"}, 404},
		{&backend.HTTPError{Status: 503}, 502},
		{fmt.Errorf("get: %w", backend.ErrTimeout), 504},
		{fmt.Errorf("%w: dial tcp", backend.ErrNetwork), 502},
		{session.ErrNoSession, 401},
		{session.ErrLoginInProgress, 409},
		{context.Canceled, 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, FromError(tc.err, nil).Status, tc.err.Error())
	}
}

func TestFromErrorKeepsBackendMessage(t *testing.T) {
	p := FromError(&backend.HTTPError{Status: 409, Message: "Copy is already reserved"}, nil)
	assert.Equal(t, "Copy is already reserved", p.Detail)
}

func TestFromErrorRelogin(t *testing.T) {
	n := &session.Notice{
		Reason:   session.ReasonFingerprintMismatch,
		Message:  "Device changed",
		Redirect: "/login",
		After:    3 * time.Second,
	}
	p := FromError(&backend.ReloginError{Message: "Device changed"}, n)
	assert.Equal(t, http.StatusUnauthorized, p.Status)
	assert.True(t, p.RequireRelogin)
	require.NotNil(t, p.Notice)
	assert.Equal(t, int64(3000), p.Notice.RedirectAfterMs)
	assert.Equal(t, "/login", p.Notice.Redirect)
}

func TestFromErrorValidation(t *testing.T) {
	var v validate.Errors
	v.Required("title", "")
	p := FromError(v.Err(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
	assert.Len(t, p.FieldErrors, 1)
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/lists/authors", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	Write(rec, req, Problem{Status: http.StatusNotFound})

	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var got Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Not Found", got.Title)
	assert.Equal(t, "/lists/authors", got.Instance)
	assert.Equal(t, "rid-1", got.RequestID)
}
