package cartline

import (
	"context"

	"lavenderlily/internal/domain"
)

type InsertInput struct {
	UserID    string
	ProductID string
	Quantity  int
	Variant   domain.Variant
}

// Repository is the persisted cart store: one row per distinct
// (product, variant) configuration in an authenticated shopper's cart.
// Each mutation is a single server-side write; keeping the
// one-line-per-configuration invariant is the caller's job (look up a
// matching line before inserting). Errors are returned as-is with no
// retry; callers decide whether a failure is retryable.
type Repository interface {
	ListForUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	Insert(ctx context.Context, in InsertInput) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	Delete(ctx context.Context, lineID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}
