// Package auth serves login, logout, registration and password flows.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/apperr"
	"github.com/5w1tchy/library-web/internal/api/httpx"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
	"github.com/5w1tchy/library-web/internal/validate"
)

// Backend is the subset of services.Auth the handlers call directly.
type Backend interface {
	Register(ctx context.Context, r services.Registration) (services.User, error)
	RequestPasswordReset(ctx context.Context, email string) (services.Ack, error)
	VerifyOTP(ctx context.Context, email, otp string) (string, error)
	ResetPassword(ctx context.Context, email, resetToken, newPassword string) (services.Ack, error)
	ChangePassword(ctx context.Context, current, next string) (services.Ack, error)
	Me(ctx context.Context) (services.User, error)
}

type Handler struct {
	Auth Backend
	// OnSignOut runs after login or logout with the browser session id, to
	// drop per-session state such as cached lists.
	OnSignOut     func(sid string)
	RedirectDelay time.Duration
	Log           *logrus.Entry
}

type sessionView struct {
	State     string        `json:"state"`
	User      *session.User `json:"user,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

func view(ctx context.Context, p *session.Provider) sessionView {
	v := sessionView{State: p.State(ctx).String()}
	if s, err := p.Current(ctx); err == nil {
		u := s.Info.User
		exp := s.Expiry
		v.User = &u
		v.ExpiresAt = &exp
	}
	return v
}

func provider(w http.ResponseWriter, r *http.Request) (*session.Provider, bool) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		apperr.WriteStatus(w, r, http.StatusInternalServerError, "Session unavailable", "")
	}
	return p, ok
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		apperr.WriteStatus(w, r, status, "Invalid request body", err.Error())
		return false
	}
	return true
}

func (h *Handler) signOut(r *http.Request) {
	if sid, ok := mw.SIDFrom(r.Context()); ok && h.OnSignOut != nil {
		h.OnSignOut(sid)
	}
}

// Login serves POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	p, ok := provider(w, r)
	if !ok {
		return
	}
	var in session.Credentials
	if !decode(w, r, &in) {
		return
	}
	var v validate.Errors
	in.Email = v.Email("email", in.Email)
	v.Required("password", in.Password)
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}

	if _, err := p.Login(r.Context(), in); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	h.signOut(r)
	httpx.OK(w, view(r.Context(), p))
}

// Logout serves POST /auth/logout. It never fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := provider(w, r)
	if !ok {
		return
	}
	p.Logout(r.Context())
	h.signOut(r)
	httpx.OKWithNotice(w, view(r.Context(), p), apperr.Notice{
		Reason:          string(session.ReasonLogout),
		Message:         "You have been logged out.",
		Redirect:        session.DefaultLoginPath,
		RedirectAfterMs: h.RedirectDelay.Milliseconds(),
	})
}

// Session serves GET /auth/session for any visitor.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	p, ok := provider(w, r)
	if !ok {
		return
	}
	httpx.OK(w, view(r.Context(), p))
}

// Me serves GET /auth/me; the backend's profile view is authoritative.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Me(r.Context())
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, u)
}

type registerRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Register serves POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if !decode(w, r, &in) {
		return
	}
	var v validate.Errors
	in.FullName = v.Bounded("fullName", in.FullName, 1, 100)
	in.Email = v.Email("email", in.Email)
	warn := v.Password("password", in.Password, in.FullName, in.Email)
	v.Confirm("confirmPassword", in.Password, in.ConfirmPassword)
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}

	u, err := h.Auth.Register(r.Context(), services.Registration{FullName: in.FullName, Email: in.Email, Password: in.Password})
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	h.Log.WithField("user", u.ID).Info("account registered")
	httpx.Created(w, map[string]any{"user": u, "passwordWarning": warn})
}

// Forgot serves POST /auth/password/forgot.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	var v validate.Errors
	in.Email = v.Email("email", in.Email)
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	ack, err := h.Auth.RequestPasswordReset(r.Context(), in.Email)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, ack)
}

// Verify serves POST /auth/password/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decode(w, r, &in) {
		return
	}
	var v validate.Errors
	in.Email = v.Email("email", in.Email)
	in.OTP = v.OTP("otp", in.OTP)
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	tok, err := h.Auth.VerifyOTP(r.Context(), in.Email, in.OTP)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]string{"resetToken": tok})
}

// Reset serves POST /auth/password/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email           string `json:"email"`
		ResetToken      string `json:"resetToken"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decode(w, r, &in) {
		return
	}
	var v validate.Errors
	in.Email = v.Email("email", in.Email)
	in.ResetToken = v.Required("resetToken", in.ResetToken)
	warn := v.Password("newPassword", in.NewPassword, in.Email)
	v.Confirm("confirmPassword", in.NewPassword, in.ConfirmPassword)
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	ack, err := h.Auth.ResetPassword(r.Context(), in.Email, in.ResetToken, in.NewPassword)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]any{"message": ack.Message, "passwordWarning": warn})
}

// Change serves POST /auth/password/change for a signed-in user.
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decode(w, r, &in) {
		return
	}
	s, _ := mw.CurrentSession(r.Context())
	var v validate.Errors
	v.Required("currentPassword", in.CurrentPassword)
	warn := v.Password("newPassword", in.NewPassword, s.Info.User.Name, s.Info.User.Email)
	v.Confirm("confirmPassword", in.NewPassword, in.ConfirmPassword)
	if in.CurrentPassword != "" && in.CurrentPassword == in.NewPassword {
		v.Add("newPassword", "unchanged", "The new password must differ from the current one.")
	}
	if err := v.Err(); err != nil {
		mw.WriteError(w, r, err)
		return
	}
	ack, err := h.Auth.ChangePassword(r.Context(), in.CurrentPassword, in.NewPassword)
	if err != nil {
		mw.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]any{"message": ack.Message, "passwordWarning": warn})
}

// Routes mounts the auth endpoints. limit wraps login, authed wraps the
// endpoints that need a session.
func (h *Handler) Routes(mux *http.ServeMux, limit, authed func(http.Handler) http.Handler) {
	mux.Handle("POST /auth/login", limit(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/session", h.Session)
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/password/forgot", h.Forgot)
	mux.HandleFunc("POST /auth/password/verify", h.Verify)
	mux.HandleFunc("POST /auth/password/reset", h.Reset)
	mux.Handle("GET /auth/me", authed(http.HandlerFunc(h.Me)))
	mux.Handle("POST /auth/password/change", authed(http.HandlerFunc(h.Change)))
}
