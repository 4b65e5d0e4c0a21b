package org

import (
	"context"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
)

// OwnerSignup carries the initial owner account details supplied at signup.
type OwnerSignup struct {
	Email    string
	Username string
	Password string
}

// Provisioner sets up the resources a fresh organization needs: the owner
// account, the initial subscription, and the welcome notification. It is
// wired in the server package to avoid import cycles.
type Provisioner interface {
	ProvisionOwner(ctx context.Context, o *Organization, owner OwnerSignup) (ownerID string, err error)
}

// SignupParams is the input to Service.Signup.
type SignupParams struct {
	Name  string
	Slug  string
	Plan  Plan
	Owner OwnerSignup
}

// Service owns organization lifecycle: signup provisioning, plan changes,
// suspension.
type Service struct {
	store       Store
	provisioner Provisioner
}

// NewService creates an organization service. provisioner may be nil in
// tests that only exercise store behavior.
func NewService(store Store, provisioner Provisioner) *Service {
	return &Service{store: store, provisioner: provisioner}
}

// Store exposes the underlying store for read paths in handlers.
func (s *Service) Store() Store { return s.store }

// Signup creates an organization and provisions its owner account. If
// provisioning fails the organization is suspended rather than deleted,
// so the slug stays reserved and support can repair the account.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*Organization, string, error) {
	now := time.Now()
	o := &Organization{
		ID:        idgen.WithPrefix("org_"),
		Name:      params.Name,
		Slug:      params.Slug,
		Plan:      params.Plan,
		Status:    StatusActive,
		Settings:  SettingsFor(params.Plan),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, "", err
	}

	if s.provisioner == nil {
		return o, "", nil
	}

	ownerID, err := s.provisioner.ProvisionOwner(ctx, o, params.Owner)
	if err != nil {
		logging.L(ctx).Error("owner provisioning failed, suspending organization",
			"org_id", o.ID, "error", err)
		o.Status = StatusSuspended
		o.UpdatedAt = time.Now()
		if uerr := s.store.Update(ctx, o); uerr != nil {
			logging.L(ctx).Error("failed to suspend organization after provisioning failure",
				"org_id", o.ID, "error", uerr)
		}
		return nil, "", err
	}

	logging.L(ctx).Info("organization created",
		"org_id", o.ID, "slug", o.Slug, "plan", string(o.Plan), "owner_id", ownerID)
	return o, ownerID, nil
}

// ChangePlan moves an organization to a new plan and refreshes its
// effective settings from the plan catalogue.
func (s *Service) ChangePlan(ctx context.Context, id string, plan Plan) (*Organization, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Plan = plan
	o.Settings = SettingsFor(plan)
	o.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("organization plan changed", "org_id", id, "plan", string(plan))
	return o, nil
}

// SetStatus suspends or reactivates an organization.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Organization, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("organization status changed", "org_id", id, "status", string(status))
	return o, nil
}
