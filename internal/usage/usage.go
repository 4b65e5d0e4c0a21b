// Package usage meters feature consumption against plan limits.
//
// Counters live in one row per (org, feature, period). The increment
// path is a single atomic upsert so concurrent requests never lose
// counts; the periodic metering job corrects drift for counters that
// mirror base tables (users, products) and raises the 80% alerts.
package usage

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("usage: not found")
)

// Alert threshold as a fraction of the limit.
const alertThreshold = 0.8

// Metered feature names. These mirror the org plan limits; extra
// rollup-only features (daily_activities) have no limit.
const (
	FeatureUsers           = "users"
	FeatureProducts        = "products"
	FeatureAPICalls        = "api_calls"
	FeatureStorage         = "storage"
	FeatureDailyActivities = "daily_activities"
)

// Usage is one metering row: the count for a feature in one calendar
// month. Limit 0 means unlimited. AlertedAt records when the 80%
// warning went out; a non-null value suppresses further alerts for the
// period.
type Usage struct {
	ID          string     `json:"id"`
	OrgID       string     `json:"orgId"`
	Feature     string     `json:"feature"`
	PeriodStart time.Time  `json:"periodStart"`
	PeriodEnd   time.Time  `json:"periodEnd"`
	Count       int64      `json:"count"`
	Limit       int64      `json:"limit"`
	AlertedAt   *time.Time `json:"alertedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Percentage returns consumption as a percentage of the limit, 0 for
// unlimited features.
func (u *Usage) Percentage() float64 {
	if u.Limit <= 0 {
		return 0
	}
	return float64(u.Count) / float64(u.Limit) * 100
}

// OverThreshold reports whether the row is at or past the alert line.
func (u *Usage) OverThreshold() bool {
	return u.Limit > 0 && float64(u.Count) >= float64(u.Limit)*alertThreshold
}

// PeriodFor returns the calendar-month boundaries (UTC) containing t.
func PeriodFor(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// Snapshot is the read model returned by Current.
type Snapshot struct {
	Feature    string  `json:"feature"`
	Count      int64   `json:"count"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
}
