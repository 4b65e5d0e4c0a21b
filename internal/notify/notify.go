// Package notify stores and fans out in-app notifications.
package notify

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("notify: not found")
)

// Type classifies a notification for display.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// ValidType reports whether t names a known notification type.
func ValidType(t Type) bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Notification is an in-app message addressed to a single user.
type Notification struct {
	ID        string     `json:"id"`
	OrgID     string     `json:"orgId"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      Type       `json:"type"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Filter narrows List results.
type Filter struct {
	UserID string
	IsRead *bool
	Type   Type
	Limit  int
	Offset int
}
