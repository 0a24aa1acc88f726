package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/backend"
)

const (
	DefaultTTL           = 8 * time.Hour
	DefaultRedirectDelay = 3 * time.Second
	DefaultLoginPath     = "/login"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what a successful backend login yields. A zero Expiration
// means the backend did not declare one.
type LoginResult struct {
	Token      string
	Expiration time.Time
	User       User
}

type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type Options struct {
	DefaultTTL    time.Duration
	RedirectDelay time.Duration
	LoginPath     string
	Fingerprint   backend.Fingerprint
	Notify        func(ctx context.Context, n Notice)
	Now           func() time.Time
	Logger        *logrus.Entry
}

// Provider is the single authority over one session store.
type Provider struct {
	store Store
	auth  Authenticator
	opts  Options

	mu             sync.Mutex
	authenticating bool
}

func NewProvider(store Store, auth Authenticator, opts Options) *Provider {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Provider{store: store, auth: auth, opts: opts}
}

func (p *Provider) State(ctx context.Context) State {
	p.mu.Lock()
	busy := p.authenticating
	p.mu.Unlock()
	if busy {
		return Authenticating
	}
	if _, err := p.Current(ctx); err != nil {
		return Anonymous
	}
	return Authenticated
}

// Current returns the stored session. An expired session is cleared and
// reported as ErrNoSession.
func (p *Provider) Current(ctx context.Context) (Session, error) {
	s, err := p.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			p.opts.Logger.WithError(err).Warn("session load failed")
		}
		return Session{}, ErrNoSession
	}
	if s.Expired(p.opts.Now()) {
		if err := p.store.Clear(ctx); err != nil {
			p.opts.Logger.WithError(err).Warn("clearing expired session failed")
		}
		p.opts.Logger.WithField("user", s.Info.User.ID).Info("session expired")
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (p *Provider) Token(ctx context.Context) (string, error) {
	s, err := p.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Login authenticates against the backend and persists the session. On any
// failure the store is left untouched.
func (p *Provider) Login(ctx context.Context, creds Credentials) (Session, error) {
	p.mu.Lock()
	if p.authenticating {
		p.mu.Unlock()
		return Session{}, ErrLoginInProgress
	}
	p.authenticating = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.authenticating = false
		p.mu.Unlock()
	}()

	creds.Email = strings.TrimSpace(creds.Email)
	res, err := p.auth.Login(ctx, creds)
	if err != nil {
		p.opts.Logger.WithError(err).WithField("email", creds.Email).Info("login rejected")
		return Session{}, err
	}
	if res.Token == "" {
		return Session{}, ErrMissingToken
	}

	now := p.opts.Now()
	s := Session{
		Token:  res.Token,
		Expiry: resolveExpiry(now, res.Expiration, res.Token, p.opts.DefaultTTL),
		Info: Info{
			User:        res.User,
			Fingerprint: p.opts.Fingerprint,
			IssuedAt:    now,
		},
	}
	if err := p.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("session: save: %w", err)
	}
	p.opts.Logger.WithFields(logrus.Fields{
		"user":    res.User.ID,
		"role":    res.User.Role,
		"expires": s.Expiry.Format(time.RFC3339),
	}).Info("login succeeded")
	return s, nil
}

// Logout tells the backend best-effort and always clears local state.
func (p *Provider) Logout(ctx context.Context) {
	s, err := p.store.Load(ctx)
	if err == nil && s.Token != "" && p.auth != nil {
		if err := p.auth.Logout(ctx, s.Token); err != nil {
			p.opts.Logger.WithError(err).Warn("backend logout failed; clearing local session anyway")
		}
	}
	if err := p.store.Clear(ctx); err != nil {
		p.opts.Logger.WithError(err).Error("clearing session failed")
	}
	p.opts.Logger.WithField("user", s.Info.User.ID).Info("logged out")
}

// Invalidate drops the session without contacting the backend and notifies
// the presentation layer.
func (p *Provider) Invalidate(ctx context.Context, reason Reason, message string) Notice {
	if err := p.store.Clear(ctx); err != nil {
		p.opts.Logger.WithError(err).Error("clearing invalidated session failed")
	}
	if message == "" {
		message = defaultMessage(reason)
	}
	n := Notice{
		Reason:   reason,
		Message:  message,
		Redirect: p.opts.LoginPath,
		After:    p.opts.RedirectDelay,
	}
	p.opts.Logger.WithField("reason", string(reason)).Warn("session invalidated")
	if p.opts.Notify != nil {
		p.opts.Notify(ctx, n)
	}
	return n
}

// HandleRelogin reacts to a backend fingerprint mismatch.
func (p *Provider) HandleRelogin(ctx context.Context, err *backend.ReloginError) {
	msg := ""
	if err != nil {
		msg = err.Message
	}
	p.Invalidate(ctx, ReasonFingerprintMismatch, msg)
}

func defaultMessage(r Reason) string {
	switch r {
	case ReasonFingerprintMismatch:
		return "Your session is no longer valid on this device. Please log in again."
	case ReasonExpired:
		return "Your session has expired. Please log in again."
	default:
		return "You have been logged out."
	}
}

type ctxKey struct{}

func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Provider)
	return p, ok && p != nil
}

// TokenFromContext has the shape of backend.Config.Token.
func TokenFromContext(ctx context.Context) string {
	p, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	tok, _ := p.Token(ctx)
	return tok
}

// ReloginFromContext has the shape of backend.Config.OnRelogin.
func ReloginFromContext(ctx context.Context, err *backend.ReloginError) {
	if p, ok := FromContext(ctx); ok {
		p.HandleRelogin(ctx, err)
	}
}
