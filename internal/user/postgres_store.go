package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mbd888/saaskit/internal/authz"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, org_id, email, username, first_name, last_name, role, password_hash,
	status, is_verified, two_factor_enabled, is_staff, login_count, last_activity_at,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, u.OrgID, u.Email, u.Username, u.FirstName, u.LastName, string(u.Role),
		u.PasswordHash, string(u.Status), u.IsVerified, u.TwoFactorEnabled, u.Staff,
		u.LoginCount, u.LastActivityAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET email = $1, username = $2, first_name = $3, last_name = $4,
			role = $5, password_hash = $6, status = $7, is_verified = $8,
			two_factor_enabled = $9, login_count = $10, last_activity_at = $11, updated_at = $12
		WHERE id = $13`,
		u.Email, u.Username, u.FirstName, u.LastName, string(u.Role), u.PasswordHash,
		string(u.Status), u.IsVerified, u.TwoFactorEnabled, u.LoginCount, u.LastActivityAt,
		u.UpdatedAt, u.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE org_id = $1 ORDER BY created_at DESC`
	args := []interface{}{orgID}
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	return p.queryUsers(ctx, query, args...)
}

func (p *PostgresStore) ListByRole(ctx context.Context, orgID string, role authz.Role) ([]*User, error) {
	return p.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE org_id = $1 AND role = $2 ORDER BY created_at`, orgID, string(role))
}

func (p *PostgresStore) CountByOrg(ctx context.Context, orgID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE org_id = $1`, orgID).Scan(&count)
	return count, err
}

func (p *PostgresStore) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(row scannable) (*User, error) {
	u := &User{}
	var (
		role, status string
		lastActivity sql.NullTime
	)
	err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&role, &u.PasswordHash, &status, &u.IsVerified, &u.TwoFactorEnabled, &u.Staff,
		&u.LoginCount, &lastActivity, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = authz.Role(role)
	u.Status = Status(status)
	if lastActivity.Valid {
		t := lastActivity.Time
		u.LastActivityAt = &t
	}
	return u, nil
}

func (p *PostgresStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET login_count = login_count + 1, last_activity_at = $1, updated_at = $1
		WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
