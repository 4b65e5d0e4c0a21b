package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/mbd888/saaskit/internal/authz"
)

// PostgresKeyStore persists API keys in PostgreSQL.
type PostgresKeyStore struct {
	db *sql.DB
}

// NewPostgresKeyStore creates a new PostgreSQL-backed key store.
func NewPostgresKeyStore(db *sql.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

const keyColumns = `id, hash, org_id, created_by, name, preview, role, usage_count,
	last_used, expires_at, revoked, created_at`

func (p *PostgresKeyStore) Create(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		key.ID, key.Hash, key.OrgID, key.CreatedBy, key.Name, key.Preview,
		string(key.Role), key.UsageCount, nullTime(key.LastUsed), key.ExpiresAt,
		key.Revoked, key.CreatedAt,
	)
	return err
}

func (p *PostgresKeyStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+keyColumns+` FROM api_keys WHERE hash = $1`, hash)
	key, err := scanKey(row)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	return key, err
}

func (p *PostgresKeyStore) ListByOrg(ctx context.Context, orgID string) ([]*APIKey, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+keyColumns+` FROM api_keys WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *PostgresKeyStore) Update(ctx context.Context, key *APIKey) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE api_keys SET name = $1, revoked = $2, expires_at = $3 WHERE id = $4`,
		key.Name, key.Revoked, key.ExpiresAt, key.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (p *PostgresKeyStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

func (p *PostgresKeyStore) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE api_keys SET usage_count = usage_count + 1, last_used = $1 WHERE id = $2`, at, id)
	return err
}

type keyScanner interface {
	Scan(dest ...interface{}) error
}

func scanKey(row keyScanner) (*APIKey, error) {
	key := &APIKey{}
	var (
		role      string
		lastUsed  sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(&key.ID, &key.Hash, &key.OrgID, &key.CreatedBy, &key.Name, &key.Preview,
		&role, &key.UsageCount, &lastUsed, &expiresAt, &key.Revoked, &key.CreatedAt)
	if err != nil {
		return nil, err
	}
	key.Role = authz.Role(role)
	if lastUsed.Valid {
		key.LastUsed = lastUsed.Time
	}
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	return key, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ KeyStore = (*PostgresKeyStore)(nil)
