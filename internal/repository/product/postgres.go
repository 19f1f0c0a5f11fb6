package product

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lavenderlily/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger}
}

const selectCols = `id::text, slug, name, description, price_cents, currency, image_url, images, category_id::text, created_at`

func (r *postgresRepo) List(ctx context.Context, categoryID string) ([]domain.Product, error) {
	q := `SELECT ` + selectCols + ` FROM products ORDER BY created_at DESC`
	args := []interface{}{}
	if categoryID != "" {
		// category_id is a uuid column; a non-UUID filter matches
		// nothing and would fail parameter encoding if sent.
		if _, err := uuid.Parse(categoryID); err != nil {
			return nil, nil
		}
		q = `SELECT ` + selectCols + ` FROM products WHERE category_id = $1 ORDER BY created_at DESC`
		args = append(args, categoryID)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	// Slugs and other non-UUID keys cannot match the uuid id column,
	// and sending one to Postgres yields an encoding error rather
	// than zero rows.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+selectCols+` FROM products WHERE id = $1`, id)
}

func (r *postgresRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.getOne(ctx, `SELECT `+selectCols+` FROM products WHERE slug = $1`, slug)
}

func (r *postgresRepo) ListByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+selectCols+` FROM products WHERE id = ANY($1)`, valid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (slug, name, description, price_cents, currency, image_url, images, category_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    currency = EXCLUDED.currency,
    image_url = EXCLUDED.image_url,
    images = EXCLUDED.images,
    category_id = EXCLUDED.category_id
RETURNING ` + selectCols + `
`
	images := p.Images
	if images == nil {
		images = []string{}
	}
	row := r.pool.QueryRow(ctx, q, p.Slug, p.Name, p.Description, p.PriceCents, p.Currency, p.ImageURL, images, p.CategoryID)
	out, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) getOne(ctx context.Context, q string, arg string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var categoryID *string
	if err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Currency,
		&p.ImageURL,
		&p.Images,
		&categoryID,
		&p.CreatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	p.CategoryID = categoryID
	return p, nil
}
