// Package session keeps the authenticated identity of one user agent and
// drives its login, logout and invalidation.
package session

import (
	"errors"
	"time"

	"github.com/5w1tchy/library-web/internal/backend"
)

var (
	ErrNoSession        = errors.New("session: not authenticated")
	ErrLoginInProgress  = errors.New("session: login already in progress")
	ErrMissingToken     = errors.New("session: login response carried no token")
	ErrStoreUnavailable = errors.New("session: store unavailable")
)

const (
	RoleAdmin     = "Admin"
	RoleLibrarian = "Librarian"
	RoleMember    = "Member"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Info is the non-secret part of a session.
type Info struct {
	User        User                `json:"user"`
	Fingerprint backend.Fingerprint `json:"fingerprint"`
	IssuedAt    time.Time           `json:"issuedAt"`
}

type Session struct {
	Token  string
	Expiry time.Time
	Info   Info
}

// Expired reports whether s can no longer be used at now. A session without a
// token or without an expiry is never usable.
func (s Session) Expired(now time.Time) bool {
	return s.Token == "" || s.Expiry.IsZero() || !now.Before(s.Expiry)
}

// record is the persisted form shared by every store.
type record struct {
	Token           string `json:"token"`
	TokenExpiration string `json:"tokenExpiration"`
	SessionInfo     Info   `json:"sessionInfo"`
}

func toRecord(s Session) record {
	return record{
		Token:           s.Token,
		TokenExpiration: s.Expiry.UTC().Format(time.RFC3339Nano),
		SessionInfo:     s.Info,
	}
}

func fromRecord(r record) (Session, error) {
	if r.Token == "" {
		return Session{}, ErrNoSession
	}
	exp, err := time.Parse(time.RFC3339Nano, r.TokenExpiration)
	if err != nil {
		return Session{}, ErrNoSession
	}
	return Session{Token: r.Token, Expiry: exp, Info: r.SessionInfo}, nil
}

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

type Reason string

const (
	ReasonLogout              Reason = "logout"
	ReasonExpired             Reason = "expired"
	ReasonFingerprintMismatch Reason = "fingerprint_mismatch"
)

// Notice tells the presentation layer to show Message and navigate to
// Redirect after the given delay.
type Notice struct {
	Reason   Reason        `json:"reason"`
	Message  string        `json:"message"`
	Redirect string        `json:"redirect"`
	After    time.Duration `json:"-"`
}

func (n Notice) AfterMillis() int64 { return n.After.Milliseconds() }
