// Package org provides the organization (tenant) root entity.
//
// Every other entity in the system is owned by exactly one organization.
// Organizations are soft-disabled via status, never hard-deleted, so
// dependent rows always have a live tenancy root.
package org

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound  = errors.New("org: not found")
	ErrSlugTaken = errors.New("org: slug already taken")
	ErrSuspended = errors.New("org: organization suspended")
)

// Status represents an organization's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Plan identifies the pricing tier.
type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Settings stores the effective limits for an organization. Values are
// copied from the plan catalogue at signup and on plan changes; 0 means
// unlimited.
type Settings struct {
	MaxUsers         int `json:"maxUsers"`
	MaxProducts      int `json:"maxProducts"`
	APICallsPerMonth int `json:"apiCallsPerMonth"`
	StorageGB        int `json:"storageGb"`
	RateLimitRPM     int `json:"rateLimitRpm"`
}

// Organization is the tenancy root.
type Organization struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Plan             Plan      `json:"plan"`
	Status           Status    `json:"status"`
	StripeCustomerID string    `json:"stripeCustomerId,omitempty"`
	Settings         Settings  `json:"settings"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsActive reports whether the organization may serve traffic.
func (o *Organization) IsActive() bool {
	return o.Status == StatusActive
}
