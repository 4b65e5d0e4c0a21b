package user

import (
	"context"
	"time"

	"github.com/mbd888/saaskit/internal/authz"
)

// Store persists user accounts.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*User, error)
	ListByRole(ctx context.Context, orgID string, role authz.Role) ([]*User, error)
	CountByOrg(ctx context.Context, orgID string) (int, error)
	// RecordLogin bumps login_count and last_activity_at in one statement.
	RecordLogin(ctx context.Context, id string, at time.Time) error
}
