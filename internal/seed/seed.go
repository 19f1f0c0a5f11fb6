package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productSeed struct {
	Slug        string
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	ImageURL    string
	Category    string
}

var categories = map[string]string{
	"dresses":     "Dresses",
	"tops":        "Tops",
	"knitwear":    "Knitwear",
	"accessories": "Accessories",
}

var products = []productSeed{
	{
		Slug:        "lavender-midi-dress",
		Name:        "Lavender Midi Dress",
		Description: "Flowing midi dress in soft lavender crepe",
		PriceCents:  24500,
		Currency:    "aed",
		ImageURL:    "/images/lavender-midi-dress.jpg",
		Category:    "dresses",
	},
	{
		Slug:        "lily-wrap-dress",
		Name:        "Lily Wrap Dress",
		Description: "Wrap-front dress with a printed lily motif",
		PriceCents:  28900,
		Currency:    "aed",
		ImageURL:    "/images/lily-wrap-dress.jpg",
		Category:    "dresses",
	},
	{
		Slug:        "silk-blouse-ivory",
		Name:        "Ivory Silk Blouse",
		Description: "Relaxed-fit blouse in washed silk",
		PriceCents:  16500,
		Currency:    "aed",
		ImageURL:    "/images/silk-blouse-ivory.jpg",
		Category:    "tops",
	},
	{
		Slug:        "merino-cardigan",
		Name:        "Merino Cardigan",
		Description: "Fine-gauge merino cardigan with shell buttons",
		PriceCents:  19900,
		Currency:    "aed",
		ImageURL:    "/images/merino-cardigan.jpg",
		Category:    "knitwear",
	},
	{
		Slug:        "chiffon-scarf-lilac",
		Name:        "Lilac Chiffon Scarf",
		Description: "Lightweight chiffon scarf in lilac",
		PriceCents:  7500,
		Currency:    "aed",
		ImageURL:    "/images/chiffon-scarf-lilac.jpg",
		Category:    "accessories",
	},
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	categoryIDs := make(map[string]string, len(categories))
	for slug, name := range categories {
		id, err := ensureCategory(ctx, pool, slug, name)
		if err != nil {
			return fmt.Errorf("ensure category %s: %w", slug, err)
		}
		categoryIDs[slug] = id
	}

	for _, p := range products {
		if err := upsertProduct(ctx, pool, categoryIDs[p.Category], p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Slug, err)
		}
	}

	return nil
}

func ensureCategory(ctx context.Context, pool *pgxpool.Pool, slug, name string) (string, error) {
	const q = `
INSERT INTO categories (slug, name)
VALUES ($1, $2)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q, slug, name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, categoryID string, p productSeed) error {
	const q = `
INSERT INTO products (slug, name, description, price_cents, currency, image_url, category_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    currency = EXCLUDED.currency,
    image_url = EXCLUDED.image_url,
    category_id = EXCLUDED.category_id
`
	_, err := pool.Exec(ctx, q, p.Slug, p.Name, p.Description, p.PriceCents, p.Currency, p.ImageURL, categoryID)
	return err
}
