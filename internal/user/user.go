// Package user manages role-based user accounts within an organization.
package user

import (
	"errors"
	"time"

	"github.com/mbd888/saaskit/internal/authz"
)

// Errors
var (
	ErrNotFound           = errors.New("user: not found")
	ErrEmailTaken         = errors.New("user: email already registered")
	ErrInvalidCredentials = errors.New("user: invalid credentials")
	ErrInactive           = errors.New("user: account inactive")
	ErrUserLimit          = errors.New("user: plan user limit reached")
)

// Status represents an account's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User is an account belonging to exactly one organization. Platform
// staff accounts have Staff set and bypass tenancy checks.
type User struct {
	ID               string     `json:"id"`
	OrgID            string     `json:"orgId"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	Role             authz.Role `json:"role"`
	PasswordHash     string     `json:"-"`
	Status           Status     `json:"status"`
	IsVerified       bool       `json:"isVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	Staff            bool       `json:"staff,omitempty"`
	LoginCount       int        `json:"loginCount"`
	LastActivityAt   *time.Time `json:"lastActivityAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Actor converts the user into its authorization identity.
func (u *User) Actor() authz.Actor {
	return authz.Actor{ID: u.ID, OrgID: u.OrgID, Role: u.Role, Staff: u.Staff}
}

// FullName returns the display name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
