package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// PostgresStore persists upload metadata in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fileColumns = `id, org_id, uploaded_by, file_name, original_name, content_type,
	size_bytes, checksum, is_public, download_count, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanFile(row scannable) (*FileUpload, error) {
	var f FileUpload
	err := row.Scan(&f.ID, &f.OrgID, &f.UploadedBy, &f.FileName, &f.OriginalName,
		&f.ContentType, &f.SizeBytes, &f.Checksum, &f.IsPublic, &f.DownloadCount,
		&f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) Create(ctx context.Context, f *FileUpload) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_uploads (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		f.ID, f.OrgID, f.UploadedBy, f.FileName, f.OriginalName, f.ContentType,
		f.SizeBytes, f.Checksum, f.IsPublic, f.DownloadCount, f.CreatedAt, f.UpdatedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, orgID, id string) (*FileUpload, error) {
	return scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM file_uploads WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (s *PostgresStore) Update(ctx context.Context, f *FileUpload) error {
	// download_count is owned by IncrementDownloads.
	res, err := s.db.ExecContext(ctx, `
		UPDATE file_uploads SET original_name = $3, is_public = $4, updated_at = $5
		WHERE org_id = $1 AND id = $2`,
		f.OrgID, f.ID, f.OriginalName, f.IsPublic, f.UpdatedAt)
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

func (s *PostgresStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM file_uploads WHERE org_id = $1 AND id = $2`, orgID, id)
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

func (s *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*FileUpload, error) {
	query := `SELECT ` + fileColumns + ` FROM file_uploads WHERE org_id = $1`
	args := []any{orgID}

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Query != "" {
		query += ` AND original_name ILIKE ` + next("%"+f.Query+"%")
	}
	if f.ContentTypePrefix != "" {
		query += ` AND content_type LIKE ` + next(f.ContentTypePrefix+"%")
	}
	if f.IsPublic != nil {
		query += ` AND is_public = ` + next(*f.IsPublic)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FileUpload
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, file)
	}
	return out, rows.Err()
}

func (s *PostgresStore) IncrementDownloads(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE file_uploads SET download_count = download_count + 1, updated_at = now()
		WHERE org_id = $1 AND id = $2`, orgID, id)
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

func (s *PostgresStore) SumSizeByOrg(ctx context.Context, orgID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(sum(size_bytes), 0) FROM file_uploads WHERE org_id = $1`, orgID).Scan(&total)
	return total, err
}
