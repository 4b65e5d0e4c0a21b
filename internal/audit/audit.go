// Package audit keeps the per-organization activity log.
//
// Recording is fail-open: an audit failure is logged and counted but
// never propagates to the operation that triggered it. The log is
// best-effort evidence, not a transactional ledger.
package audit

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("audit: not found")
)

// Action classifies what happened.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
)

// Entry is one row of the activity log.
type Entry struct {
	ID            string                 `json:"id"`
	OrgID         string                 `json:"orgId"`
	ActorID       string                 `json:"actorId,omitempty"`
	Action        Action                 `json:"action"`
	ResourceType  string                 `json:"resourceType"`
	ResourceID    string                 `json:"resourceId,omitempty"`
	Description   string                 `json:"description"`
	IPAddress     string                 `json:"ipAddress,omitempty"`
	UserAgent     string                 `json:"userAgent,omitempty"`
	RequestPath   string                 `json:"requestPath,omitempty"`
	RequestMethod string                 `json:"requestMethod,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// Filter narrows List results.
type Filter struct {
	ActorID      string
	Action       Action
	ResourceType string
	Since        time.Time
	Until        time.Time
	Limit        int
	Offset       int
}
