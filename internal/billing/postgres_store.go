package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const subColumns = `id, org_id, plan, status, current_period_start, current_period_end,
	cancel_at_period_end, stripe_subscription_id, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanSub(row scannable) (*Subscription, error) {
	var s Subscription
	var stripeID sql.NullString
	err := row.Scan(&s.ID, &s.OrgID, &s.Plan, &s.Status, &s.CurrentPeriodStart,
		&s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &stripeID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.StripeSubscriptionID = stripeID.String
	return &s, nil
}

func (p *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.OrgID, string(sub.Plan), string(sub.Status), sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sql.NullString{String: sub.StripeSubscriptionID, Valid: sub.StripeSubscriptionID != ""},
		sub.CreatedAt, sub.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, orgID, id string) (*Subscription, error) {
	return scanSub(p.db.QueryRowContext(ctx,
		`SELECT `+subColumns+` FROM subscriptions WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (p *PostgresStore) GetLatest(ctx context.Context, orgID string) (*Subscription, error) {
	return scanSub(p.db.QueryRowContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions
		WHERE org_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, orgID))
}

func (p *PostgresStore) Update(ctx context.Context, sub *Subscription) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET plan = $3, status = $4, current_period_start = $5,
			current_period_end = $6, cancel_at_period_end = $7, stripe_subscription_id = $8,
			updated_at = $9
		WHERE org_id = $1 AND id = $2`,
		sub.OrgID, sub.ID, string(sub.Plan), string(sub.Status), sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sql.NullString{String: sub.StripeSubscriptionID, Valid: sub.StripeSubscriptionID != ""},
		sub.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions
		WHERE status IN ('active', 'trialing') AND current_period_end < $1
		ORDER BY current_period_end LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
