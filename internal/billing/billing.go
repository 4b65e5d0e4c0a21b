// Package billing manages the subscription attached to each
// organization and its renewal lifecycle.
package billing

import (
	"errors"
	"time"

	"github.com/mbd888/saaskit/internal/org"
)

// Errors
var (
	ErrNotFound = errors.New("billing: subscription not found")
)

// Status is the subscription lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrialing  Status = "trialing"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
)

// renewalPeriod is the length of one billing period.
const renewalPeriod = 30 * 24 * time.Hour

// Subscription ties an organization to a paid plan for one rolling
// period. An org has at most one live subscription; the newest row wins.
type Subscription struct {
	ID                   string    `json:"id"`
	OrgID                string    `json:"orgId"`
	Plan                 org.Plan  `json:"plan"`
	Status               Status    `json:"status"`
	CurrentPeriodStart   time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool      `json:"cancelAtPeriodEnd"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// IsActive reports whether the subscription currently entitles the org
// to its plan.
func (s *Subscription) IsActive() bool {
	return (s.Status == StatusActive || s.Status == StatusTrialing) &&
		time.Now().Before(s.CurrentPeriodEnd)
}
