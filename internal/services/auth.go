package services

import (
	"context"
	"net/http"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/session"
)

type loginWire struct {
	Email    string `json:"Email"`
	Password string `json:"Password"`
}

type loginResponse struct {
	Token      string   `json:"Token"`
	Expiration wireTime `json:"Expiration"`
	User       userWire `json:"User"`
}

type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registrationWire struct {
	FullName string `json:"FullName"`
	Email    string `json:"Email"`
	Password string `json:"Password"`
}

// Ack is a message-only backend answer.
type Ack struct {
	Message string `json:"message"`
}

type ackWire struct {
	Message string `json:"Message"`
}

// Auth talks to the Auth endpoints. It implements session.Authenticator.
type Auth struct {
	c *backend.Client
}

var _ session.Authenticator = (*Auth)(nil)

func NewAuth(c *backend.Client) *Auth { return &Auth{c: c} }

// Login never sends a bearer token.
func (a *Auth) Login(ctx context.Context, creds session.Credentials) (session.LoginResult, error) {
	var out loginResponse
	if err := a.anonymous(ctx, http.MethodPost, "Auth/login", loginWire{Email: creds.Email, Password: creds.Password}, &out); err != nil {
		return session.LoginResult{}, err
	}
	return session.LoginResult{
		Token:      out.Token,
		Expiration: out.Expiration.Time,
		User:       userView(out.User).Identity(),
	}, nil
}

// Logout sends the token explicitly; it runs while the session is being torn
// down and must not resolve the token from context.
func (a *Auth) Logout(ctx context.Context, token string) error {
	_, err := a.c.Request(ctx, "Auth/logout", http.MethodPost, nil, token)
	return err
}

func (a *Auth) Register(ctx context.Context, r Registration) (User, error) {
	var out userWire
	err := a.anonymous(ctx, http.MethodPost, "Auth/register", registrationWire{FullName: r.FullName, Email: r.Email, Password: r.Password}, &out)
	if err != nil {
		return User{}, err
	}
	return userView(out), nil
}

// RequestPasswordReset asks the backend to email a one-time code.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) (Ack, error) {
	var out ackWire
	err := a.anonymous(ctx, http.MethodPost, "Auth/forgot-password", map[string]string{"Email": email}, &out)
	return Ack{Message: out.Message}, err
}

// VerifyOTP exchanges a one-time code for a reset token.
func (a *Auth) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	var out struct {
		ResetToken string `json:"ResetToken"`
	}
	err := a.anonymous(ctx, http.MethodPost, "Auth/verify-otp", map[string]string{"Email": email, "Otp": otp}, &out)
	return out.ResetToken, err
}

func (a *Auth) ResetPassword(ctx context.Context, email, resetToken, newPassword string) (Ack, error) {
	var out ackWire
	body := map[string]string{"Email": email, "ResetToken": resetToken, "NewPassword": newPassword}
	err := a.anonymous(ctx, http.MethodPost, "Auth/reset-password", body, &out)
	return Ack{Message: out.Message}, err
}

func (a *Auth) ChangePassword(ctx context.Context, current, next string) (Ack, error) {
	var out ackWire
	body := map[string]string{"CurrentPassword": current, "NewPassword": next}
	err := a.c.Call(ctx, http.MethodPost, "Auth/change-password", body, &out)
	return Ack{Message: out.Message}, err
}

// Me returns the backend's view of the signed-in user.
func (a *Auth) Me(ctx context.Context) (User, error) {
	var out userWire
	if err := a.c.Call(ctx, http.MethodGet, "Auth/me", nil, &out); err != nil {
		return User{}, err
	}
	return userView(out), nil
}

func (a *Auth) anonymous(ctx context.Context, method, endpoint string, body, out any) error {
	raw, err := a.c.Request(ctx, endpoint, method, body, "")
	if err != nil {
		return err
	}
	return decodeInto(raw, out)
}
