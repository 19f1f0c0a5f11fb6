package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lavenderlily/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO orders (user_id, order_number, status, stripe_session_id, currency,
                    subtotal_cents, shipping_cents, total_cents, shipping_address, billing_address)
VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9)
RETURNING id::text, order_number, status, created_at
`
	var out domain.Order
	err = tx.QueryRow(ctx, q,
		in.UserID,
		newOrderNumber(),
		in.SessionID,
		in.Currency,
		in.SubtotalCents,
		in.ShippingCents,
		in.TotalCents,
		in.ShippingAddress,
		in.BillingAddress,
	).Scan(&out.ID, &out.OrderNumber, &out.Status, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	out.UserID = in.UserID
	out.SessionID = in.SessionID
	out.Currency = in.Currency
	out.SubtotalCents = in.SubtotalCents
	out.ShippingCents = in.ShippingCents
	out.TotalCents = in.TotalCents
	out.ShippingAddress = in.ShippingAddress
	out.BillingAddress = in.BillingAddress

	for _, item := range in.Items {
		const itemQ = `
INSERT INTO order_items (order_id, product_id, product_name, product_image, quantity, size, color, unit_price_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id::text
`
		total := item.UnitPriceCents * int64(item.Quantity)
		var itemID string
		if err := tx.QueryRow(ctx, itemQ,
			out.ID,
			item.ProductID,
			item.ProductName,
			item.ProductImage,
			item.Quantity,
			item.Variant.Size,
			item.Variant.Color,
			item.UnitPriceCents,
			total,
		).Scan(&itemID); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, domain.OrderItem{
			ID:             itemID,
			OrderID:        out.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ProductImage:   item.ProductImage,
			Quantity:       item.Quantity,
			Variant:        item.Variant,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     total,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	const q = `
SELECT id::text, user_id::text, order_number, status, stripe_session_id, currency,
       subtotal_cents, shipping_cents, total_cents, shipping_address, billing_address, created_at
FROM orders
WHERE stripe_session_id = $1
`
	out, err := scanOrder(r.pool.QueryRow(ctx, q, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	const q = `
SELECT id::text, user_id::text, order_number, status, stripe_session_id, currency,
       subtotal_cents, shipping_cents, total_cents, shipping_address, billing_address, created_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *postgresRepo) loadItems(ctx context.Context, o *domain.Order) error {
	const q = `
SELECT id::text, product_id::text, product_name, product_image, quantity, size, color, unit_price_cents, total_cents
FROM order_items
WHERE order_id = $1
`
	rows, err := r.pool.Query(ctx, q, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item := domain.OrderItem{OrderID: o.ID}
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductImage,
			&item.Quantity,
			&item.Variant.Size,
			&item.Variant.Color,
			&item.UnitPriceCents,
			&item.TotalCents,
		); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.OrderNumber,
		&o.Status,
		&o.SessionID,
		&o.Currency,
		&o.SubtotalCents,
		&o.ShippingCents,
		&o.TotalCents,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

// newOrderNumber generates a human-readable order number like
// ORD-20260831-7F3A2C. Uniqueness is enforced by the orders table.
func newOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
