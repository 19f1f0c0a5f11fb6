package product

import (
	"context"

	"lavenderlily/internal/domain"
)

type Repository interface {
	List(ctx context.Context, categoryID string) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	// ListByIDs returns the products for the given ids; ids with no
	// matching product are silently absent from the result.
	ListByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}
