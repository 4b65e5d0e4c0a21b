package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed notification store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const notifColumns = `id, org_id, user_id, title, message, type, is_read, read_at, created_at`

func (p *PostgresStore) Create(ctx context.Context, n *Notification) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notifColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.OrgID, n.UserID, n.Title, n.Message, string(n.Type),
		n.IsRead, n.ReadAt, n.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Notification, error) {
	n, err := scanNotification(p.db.QueryRowContext(ctx, `
		SELECT `+notifColumns+` FROM notifications WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return n, err
}

func (p *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*Notification, error) {
	query := `SELECT ` + notifColumns + ` FROM notifications WHERE org_id = $1`
	args := []interface{}{orgID}

	if f.UserID != "" {
		args = append(args, f.UserID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if f.IsRead != nil {
		args = append(args, *f.IsRead)
		query += fmt.Sprintf(` AND is_read = $%d`, len(args))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(` AND type = $%d`, len(args))
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

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountUnread(ctx context.Context, orgID, userID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE org_id = $1 AND user_id = $2 AND is_read = FALSE`, orgID, userID).Scan(&count)
	return count, err
}

func (p *PostgresStore) Update(ctx context.Context, n *Notification) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = $1, read_at = $2 WHERE id = $3`,
		n.IsRead, n.ReadAt, n.ID)
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

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
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

type notifScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row notifScanner) (*Notification, error) {
	n := &Notification{}
	var (
		typ    string
		readAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.OrgID, &n.UserID, &n.Title, &n.Message, &typ,
		&n.IsRead, &readAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

var _ Store = (*PostgresStore)(nil)
