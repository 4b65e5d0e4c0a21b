package org

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed organization store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, o *Organization) error {
	settingsJSON, err := json.Marshal(o.Settings)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, plan, status, stripe_customer_id, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Name, o.Slug, string(o.Plan), string(o.Status), o.StripeCustomerID,
		settingsJSON, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, plan, status, stripe_customer_id, settings, created_at, updated_at
		FROM organizations WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, plan, status, stripe_customer_id, settings, created_at, updated_at
		FROM organizations WHERE slug = $1`, slug))
}

func (p *PostgresStore) Update(ctx context.Context, o *Organization) error {
	settingsJSON, err := json.Marshal(o.Settings)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE organizations SET name = $1, plan = $2, status = $3, stripe_customer_id = $4,
			settings = $5, updated_at = $6
		WHERE id = $7`,
		o.Name, string(o.Plan), string(o.Status), o.StripeCustomerID,
		settingsJSON, o.UpdatedAt, o.ID,
	)
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

func (p *PostgresStore) List(ctx context.Context, status Status, limit, offset int) ([]*Organization, error) {
	query := `
		SELECT id, name, slug, plan, status, stripe_customer_id, settings, created_at, updated_at
		FROM organizations`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orgs []*Organization
	for rows.Next() {
		o, err := p.scanOrgRows(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (p *PostgresStore) ListActive(ctx context.Context) ([]*Organization, error) {
	return p.List(ctx, StatusActive, 0, 0)
}

func (p *PostgresStore) scanOrg(row *sql.Row) (*Organization, error) {
	o := &Organization{}
	var (
		plan, status string
		stripeID     sql.NullString
		settingsJSON []byte
	)
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &plan, &status, &stripeID, &settingsJSON,
		&o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Plan = Plan(plan)
	o.Status = Status(status)
	if stripeID.Valid {
		o.StripeCustomerID = stripeID.String
	}
	if len(settingsJSON) > 0 {
		_ = json.Unmarshal(settingsJSON, &o.Settings)
	}
	return o, nil
}

func (p *PostgresStore) scanOrgRows(rows *sql.Rows) (*Organization, error) {
	o := &Organization{}
	var (
		plan, status string
		stripeID     sql.NullString
		settingsJSON []byte
	)
	err := rows.Scan(&o.ID, &o.Name, &o.Slug, &plan, &status, &stripeID, &settingsJSON,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Plan = Plan(plan)
	o.Status = Status(status)
	if stripeID.Valid {
		o.StripeCustomerID = stripeID.String
	}
	if len(settingsJSON) > 0 {
		_ = json.Unmarshal(settingsJSON, &o.Settings)
	}
	return o, nil
}

var _ Store = (*PostgresStore)(nil)
