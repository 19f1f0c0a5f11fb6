package cartline

import (
	"context"
	"errors"

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

func (r *postgresRepo) ListForUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	const q = `
SELECT id::text, product_id::text, quantity, size, color, created_at
FROM cart_lines
WHERE user_id = $1
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.ProductID,
			&line.Quantity,
			&line.Variant.Size,
			&line.Variant.Color,
			&line.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Insert(ctx context.Context, in InsertInput) (*domain.CartLine, error) {
	const q = `
INSERT INTO cart_lines (user_id, product_id, quantity, size, color)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text, product_id::text, quantity, size, color, created_at
`
	var line domain.CartLine
	err := r.pool.QueryRow(ctx, q, in.UserID, in.ProductID, in.Quantity, in.Variant.Size, in.Variant.Color).Scan(
		&line.ID,
		&line.ProductID,
		&line.Quantity,
		&line.Variant.Size,
		&line.Variant.Color,
		&line.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE cart_lines SET quantity = $1 WHERE id = $2`, quantity, lineID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, lineID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return err
}
