package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists activity log entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed activity log store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const auditColumns = `id, org_id, actor_id, action, resource_type, resource_id, description,
	ip_address, user_agent, request_path, request_method, metadata, created_at`

func (p *PostgresStore) Create(ctx context.Context, e *Entry) error {
	var metadataJSON []byte
	if e.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO activity_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.OrgID, e.ActorID, string(e.Action), e.ResourceType, e.ResourceID,
		e.Description, e.IPAddress, e.UserAgent, e.RequestPath, e.RequestMethod,
		metadataJSON, e.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(p.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+` FROM activity_logs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*Entry, error) {
	query := `SELECT ` + auditColumns + ` FROM activity_logs WHERE org_id = $1`
	args := []interface{}{orgID}

	if f.ActorID != "" {
		args = append(args, f.ActorID)
		query += fmt.Sprintf(` AND actor_id = $%d`, len(args))
	}
	if f.Action != "" {
		args = append(args, string(f.Action))
		query += fmt.Sprintf(` AND action = $%d`, len(args))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		query += fmt.Sprintf(` AND resource_type = $%d`, len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE id = $1`, id)
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

func (p *PostgresStore) CountSince(ctx context.Context, orgID string, since, until time.Time) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activity_logs
		WHERE org_id = $1 AND created_at >= $2 AND created_at < $3`,
		orgID, since, until).Scan(&count)
	return count, err
}

type entryScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row entryScanner) (*Entry, error) {
	e := &Entry{}
	var (
		action       string
		metadataJSON []byte
	)
	err := row.Scan(&e.ID, &e.OrgID, &e.ActorID, &action, &e.ResourceType, &e.ResourceID,
		&e.Description, &e.IPAddress, &e.UserAgent, &e.RequestPath, &e.RequestMethod,
		&metadataJSON, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Action = Action(action)
	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &e.Metadata)
	}
	return e, nil
}

var _ Store = (*PostgresStore)(nil)
