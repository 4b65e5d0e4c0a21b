package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/mbd888/saaskit/internal/pagination"
)

// PostgresStore persists the catalogue in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const categoryColumns = `id, org_id, name, slug, description, is_active, created_at, updated_at`

const productColumns = `id, org_id, category_id, name, sku, description, price, cost_price,
	sale_price, quantity, is_active, is_featured, is_digital, view_count, rating,
	review_count, created_by, updated_by, created_at, updated_at`

const imageColumns = `id, product_id, url, alt_text, is_primary, sort_order, created_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanCategory(row scannable) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Slug, &c.Description, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanProduct(row scannable) (*Product, error) {
	var p Product
	var categoryID, updatedBy sql.NullString
	var costPrice, salePrice sql.NullInt64
	err := row.Scan(&p.ID, &p.OrgID, &categoryID, &p.Name, &p.SKU, &p.Description,
		&p.Price, &costPrice, &salePrice, &p.Quantity, &p.IsActive, &p.IsFeatured,
		&p.IsDigital, &p.ViewCount, &p.Rating, &p.ReviewCount, &p.CreatedBy,
		&updatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CategoryID = categoryID.String
	p.UpdatedBy = updatedBy.String
	if costPrice.Valid {
		v := costPrice.Int64
		p.CostPrice = &v
	}
	if salePrice.Valid {
		v := salePrice.Int64
		p.SalePrice = &v
	}
	return &p, nil
}

func scanImage(row scannable) (*ProductImage, error) {
	var img ProductImage
	err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.AltText, &img.IsPrimary,
		&img.SortOrder, &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s *PostgresStore) CreateCategory(ctx context.Context, cat *Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cat.ID, cat.OrgID, cat.Name, cat.Slug, cat.Description, cat.IsActive,
		cat.CreatedAt, cat.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrSlugTaken
	}
	return err
}

func (s *PostgresStore) GetCategory(ctx context.Context, orgID, id string) (*Category, error) {
	return scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (s *PostgresStore) GetCategoryBySlug(ctx context.Context, orgID, slug string) (*Category, error) {
	return scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE org_id = $1 AND slug = $2`, orgID, slug))
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, cat *Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $3, slug = $4, description = $5, is_active = $6, updated_at = $7
		WHERE org_id = $1 AND id = $2`,
		cat.OrgID, cat.ID, cat.Name, cat.Slug, cat.Description, cat.IsActive, cat.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrSlugTaken
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, orgID, id string) error {
	// products.category_id is ON DELETE SET NULL in the schema.
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) ListCategories(ctx context.Context, orgID string) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, org_id, category_id, name, sku, description, price, cost_price,
			sale_price, quantity, is_active, is_featured, is_digital, view_count, rating,
			review_count, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		p.ID, p.OrgID, nullStr(p.CategoryID), p.Name, p.SKU, p.Description, p.Price,
		nullInt(p.CostPrice), nullInt(p.SalePrice), p.Quantity, p.IsActive, p.IsFeatured,
		p.IsDigital, p.ViewCount, p.Rating, p.ReviewCount, p.CreatedBy,
		nullStr(p.UpdatedBy), p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresStore) GetProduct(ctx context.Context, orgID, id string) (*Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *Product) error {
	// view_count is owned by IncrementViews and deliberately not written here.
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET category_id = $3, name = $4, description = $5, price = $6,
			cost_price = $7, sale_price = $8, quantity = $9, is_active = $10,
			is_featured = $11, is_digital = $12, rating = $13, review_count = $14,
			updated_by = $15, updated_at = $16
		WHERE org_id = $1 AND id = $2`,
		p.OrgID, p.ID, nullStr(p.CategoryID), p.Name, p.Description, p.Price,
		nullInt(p.CostPrice), nullInt(p.SalePrice), p.Quantity, p.IsActive,
		p.IsFeatured, p.IsDigital, p.Rating, p.ReviewCount, nullStr(p.UpdatedBy), p.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM products WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) ListProducts(ctx context.Context, orgID string, f ProductFilter, limit int, cursor *pagination.Cursor) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.org_id = $1`
	args := []any{orgID}

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.CategorySlug != "" {
		query += ` AND p.category_id IN (SELECT id FROM categories WHERE org_id = $1 AND slug = ` + next(f.CategorySlug) + `)`
	}
	if f.Query != "" {
		ph := next("%" + f.Query + "%")
		query += ` AND (p.name ILIKE ` + ph + ` OR p.description ILIKE ` + ph + `)`
	}
	if f.MinPrice != nil {
		query += ` AND p.price >= ` + next(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		query += ` AND p.price <= ` + next(*f.MaxPrice)
	}
	if f.IsActive != nil {
		query += ` AND p.is_active = ` + next(*f.IsActive)
	}
	if f.IsFeatured != nil {
		query += ` AND p.is_featured = ` + next(*f.IsFeatured)
	}
	if f.IsDigital != nil {
		query += ` AND p.is_digital = ` + next(*f.IsDigital)
	}
	if cursor != nil {
		query += fmt.Sprintf(` AND (p.created_at, p.id) < (%s, %s)`,
			next(cursor.CreatedAt), next(cursor.ID))
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ` + next(limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountProducts(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM products WHERE org_id = $1`, orgID).Scan(&n)
	return n, err
}

func (s *PostgresStore) IncrementViews(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET view_count = view_count + 1 WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) CreateImage(ctx context.Context, img *ProductImage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_images (`+imageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		img.ID, img.ProductID, img.URL, img.AltText, img.IsPrimary, img.SortOrder, img.CreatedAt)
	return err
}

func (s *PostgresStore) GetImage(ctx context.Context, productID, imageID string) (*ProductImage, error) {
	return scanImage(s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM product_images WHERE product_id = $1 AND id = $2`,
		productID, imageID))
}

func (s *PostgresStore) UpdateImage(ctx context.Context, img *ProductImage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE product_images SET url = $3, alt_text = $4, is_primary = $5, sort_order = $6
		WHERE product_id = $1 AND id = $2`,
		img.ProductID, img.ID, img.URL, img.AltText, img.IsPrimary, img.SortOrder)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteImage(ctx context.Context, productID, imageID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM product_images WHERE product_id = $1 AND id = $2`, productID, imageID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) ListImages(ctx context.Context, productID string) ([]*ProductImage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM product_images WHERE product_id = $1 ORDER BY sort_order, id`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ProductImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClearPrimary(ctx context.Context, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE product_images SET is_primary = false WHERE product_id = $1`, productID)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
