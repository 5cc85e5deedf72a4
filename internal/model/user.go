package model

import (
	"slices"
	"time"
)

// User mirrors a row of Django's auth_user table together with its groups.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	IsSuperuser  bool       `json:"is_superuser"`
	IsStaff      bool       `json:"is_staff"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	Groups       []Group    `json:"groups,omitempty"`
}

// Nickname is the display name handed back to clients. Django has no
// nickname column, so it lives in first_name.
func (u User) Nickname() string {
	return u.FirstName
}

type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewUser holds the fields written when an account is created.
type NewUser struct {
	Username     string
	PasswordHash string
	Nickname     string
	Email        string
}

type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type TokenResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Token    string `json:"token,omitempty"`
}

// ClaimSet is the authorization decision embedded in tokens and returned by
// the webhook. AllowedRoles always contains DefaultRole.
type ClaimSet struct {
	DefaultRole  string   `json:"x-hasura-default-role"`
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
	UserID       string   `json:"x-hasura-user-id"`
}

// Allows reports whether role is one of the allowed roles.
func (c ClaimSet) Allows(role string) bool {
	return slices.Contains(c.AllowedRoles, role)
}

// Clone returns a copy that shares no memory with c.
func (c ClaimSet) Clone() ClaimSet {
	c.AllowedRoles = slices.Clone(c.AllowedRoles)
	return c
}

const AnonymousRole = "anonymous"

// AnonymousDecision is returned when a request carries no credentials.
type AnonymousDecision struct {
	Role string `json:"X-Hasura-Role"`
}
