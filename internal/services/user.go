package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/paging"
	"github.com/5w1tchy/library-web/internal/session"
)

var Roles = []string{session.RoleAdmin, session.RoleLibrarian, session.RoleMember}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type userWire struct {
	ID        string   `json:"Id"`
	UserName  string   `json:"UserName,omitempty"`
	FullName  string   `json:"FullName"`
	Email     string   `json:"Email"`
	Role      string   `json:"Role"`
	IsActive  bool     `json:"IsActive"`
	CreatedAt wireTime `json:"CreatedAt,omitempty"`
}

func userView(w userWire) User {
	return User{
		ID:        w.ID,
		Username:  w.UserName,
		Name:      w.FullName,
		Email:     w.Email,
		Role:      w.Role,
		Active:    w.IsActive,
		CreatedAt: w.CreatedAt.Time,
	}
}

func userToWire(v User) userWire {
	return userWire{
		ID:       v.ID,
		UserName: v.Username,
		FullName: v.Name,
		Email:    v.Email,
		Role:     v.Role,
		IsActive: v.Active,
	}
}

// Identity is the session-level view of a user.
func (u User) Identity() session.User {
	return session.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

var UserSearch = odata.NewBuilder(
	odata.Field{Key: "search", Path: "FullName", Kind: odata.Contains},
	odata.Field{Key: "email", Path: "Email", Kind: odata.Contains},
	odata.Field{Key: "role", Path: "Role", Kind: odata.Equals, Allowed: Roles},
)

type Users struct {
	Collection[User]
	c *backend.Client
}

func NewUsers(c *backend.Client) *Users {
	return &Users{Collection: NewResource(c, "User", userView, userToWire), c: c}
}

func (u *Users) SetRole(ctx context.Context, id, role string) error {
	return u.c.Call(ctx, http.MethodPut, "User/"+url.PathEscape(id)+"/Role", map[string]string{"Role": role}, nil)
}

func (u *Users) ListFetcher() paging.Fetcher[User, odata.Criteria] {
	return u.Fetcher(UserSearch)
}
