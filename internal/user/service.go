package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/org"
)

// Hooks receives callbacks after successful user mutations. The server
// package wires usage metering and welcome notifications here; a nil
// Hooks disables them.
type Hooks interface {
	UserCreated(ctx context.Context, u *User)
	UserDeleted(ctx context.Context, u *User)
}

// CreateParams is the input to Service.Create.
type CreateParams struct {
	OrgID     string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Role      authz.Role
	Password  string
}

// Service owns account lifecycle: creation under plan limits, credential
// checks, password changes.
type Service struct {
	store Store
	orgs  org.Store
	hooks Hooks
}

// NewService creates a user service. orgs may be nil to skip plan-limit
// enforcement (tests); hooks may be nil.
func NewService(store Store, orgs org.Store, hooks Hooks) *Service {
	return &Service{store: store, orgs: orgs, hooks: hooks}
}

// Store exposes the underlying store for read paths in handlers.
func (s *Service) Store() Store { return s.store }

// Create adds an account to an organization, enforcing the plan's user
// cap before inserting.
func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	if s.orgs != nil {
		o, err := s.orgs.Get(ctx, params.OrgID)
		if err != nil {
			return nil, err
		}
		if max := o.Settings.MaxUsers; max > 0 {
			count, err := s.store.CountByOrg(ctx, params.OrgID)
			if err != nil {
				return nil, err
			}
			if count >= max {
				return nil, ErrUserLimit
			}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &User{
		ID:           idgen.WithPrefix("usr_"),
		OrgID:        params.OrgID,
		Email:        params.Email,
		Username:     params.Username,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         params.Role,
		PasswordHash: string(hash),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.Username == "" {
		u.Username = u.Email
	}

	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("user created", "user_id", u.ID, "org_id", u.OrgID, "role", string(u.Role))
	if s.hooks != nil {
		s.hooks.UserCreated(ctx, u)
	}
	return u, nil
}

// dummyHash keeps the bcrypt comparison running for unknown emails so
// response timing does not reveal whether an address is registered.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Authenticate verifies email+password and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrInactive
	}
	return u, nil
}

// RecordLogin bumps the login counter after a successful token issue.
func (s *Service) RecordLogin(ctx context.Context, id string) {
	if err := s.store.RecordLogin(ctx, id, time.Now()); err != nil {
		logging.L(ctx).Warn("failed to record login", "user_id", id, "error", err)
	}
}

// ChangePassword verifies the old password and replaces it.
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, u); err != nil {
		return err
	}
	logging.L(ctx).Info("password changed", "user_id", id)
	return nil
}

// SetTwoFactor toggles two-factor enrollment.
func (s *Service) SetTwoFactor(ctx context.Context, id string, enabled bool) (*User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.TwoFactorEnabled = enabled
	u.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.L(ctx).Info("user deleted", "user_id", id, "org_id", u.OrgID)
	if s.hooks != nil {
		s.hooks.UserDeleted(ctx, u)
	}
	return nil
}
