package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const usageColumns = `id, org_id, feature, period_start, period_end, count, usage_limit, alerted_at, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanUsage(row scannable) (*Usage, error) {
	var u Usage
	var alerted sql.NullTime
	err := row.Scan(&u.ID, &u.OrgID, &u.Feature, &u.PeriodStart, &u.PeriodEnd,
		&u.Count, &u.Limit, &alerted, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if alerted.Valid {
		t := alerted.Time
		u.AlertedAt = &t
	}
	return &u, nil
}

func (s *PostgresStore) Increment(ctx context.Context, orgID, feature string, periodStart, periodEnd time.Time, delta, limit int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, org_id, feature, period_start, period_end, count, usage_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (org_id, feature, period_start)
		DO UPDATE SET count = usage_records.count + $6, usage_limit = $7, updated_at = now()`,
		idgen.WithPrefix("usg_"), orgID, feature, periodStart.UTC(), periodEnd.UTC(), delta, limit)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, orgID, feature string, periodStart time.Time) (*Usage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+usageColumns+` FROM usage_records WHERE org_id = $1 AND feature = $2 AND period_start = $3`,
		orgID, feature, periodStart.UTC())
	u, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID string, periodStart time.Time) ([]*Usage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM usage_records WHERE org_id = $1 AND period_start = $2 ORDER BY feature`,
		orgID, periodStart.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Usage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetCount(ctx context.Context, orgID, feature string, periodStart, periodEnd time.Time, count, limit int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, org_id, feature, period_start, period_end, count, usage_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (org_id, feature, period_start)
		DO UPDATE SET count = $6, usage_limit = $7, updated_at = now()`,
		idgen.WithPrefix("usg_"), orgID, feature, periodStart.UTC(), periodEnd.UTC(), count, limit)
	return err
}

func (s *PostgresStore) MarkAlerted(ctx context.Context, orgID, feature string, periodStart time.Time, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_records SET alerted_at = $4, updated_at = now()
		WHERE org_id = $1 AND feature = $2 AND period_start = $3 AND alerted_at IS NULL`,
		orgID, feature, periodStart.UTC(), at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
