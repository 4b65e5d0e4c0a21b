package server

import (
	"context"

	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/billing"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/notify"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/usage"
	"github.com/mbd888/saaskit/internal/user"
)

// userHooks implements user.Hooks: every account creation and deletion
// adjusts the users counter, and new accounts get a welcome notification.
type userHooks struct {
	usage  *usage.Service
	notify *notify.Service
}

func (h *userHooks) UserCreated(ctx context.Context, u *user.User) {
	if err := h.usage.Increment(ctx, u.OrgID, usage.FeatureUsers, 1); err != nil {
		logging.L(ctx).Warn("user metering failed", "org_id", u.OrgID, "error", err)
	}

	name := u.FirstName
	if name == "" {
		name = u.Username
	}
	if _, err := h.notify.Notify(ctx, u.OrgID, u.ID, notify.TypeInfo,
		"Welcome to the team", "Hi "+name+", your account is ready."); err != nil {
		logging.L(ctx).Warn("welcome notification failed", "user_id", u.ID, "error", err)
	}
}

func (h *userHooks) UserDeleted(ctx context.Context, u *user.User) {
	if err := h.usage.Increment(ctx, u.OrgID, usage.FeatureUsers, -1); err != nil {
		logging.L(ctx).Warn("user metering failed", "org_id", u.OrgID, "error", err)
	}
}

// ownerProvisioner implements org.Provisioner: a fresh organization gets
// its owner account and an initial subscription on the signup plan. The
// billing field is assigned after construction because the billing service
// itself depends on the org service.
type ownerProvisioner struct {
	users   *user.Service
	billing *billing.Service
}

func (p *ownerProvisioner) ProvisionOwner(ctx context.Context, o *org.Organization, owner org.OwnerSignup) (string, error) {
	u, err := p.users.Create(ctx, user.CreateParams{
		OrgID:    o.ID,
		Email:    owner.Email,
		Username: owner.Username,
		Role:     authz.RoleOwner,
		Password: owner.Password,
	})
	if err != nil {
		return "", err
	}

	if p.billing != nil {
		if _, err := p.billing.Subscribe(ctx, o.ID, o.Plan); err != nil {
			// The org and owner exist; the subscription can be created later
			logging.L(ctx).Warn("initial subscription failed", "org_id", o.ID, "error", err)
		}
	}

	return u.ID, nil
}
