package order

import (
	"context"

	"lavenderlily/internal/domain"
)

type CreateInput struct {
	UserID          string
	SessionID       string
	Currency        string
	SubtotalCents   int64
	ShippingCents   int64
	TotalCents      int64
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	Items           []ItemInput
}

type ItemInput struct {
	ProductID      string
	ProductName    string
	ProductImage   string
	Quantity       int
	Variant        domain.Variant
	UnitPriceCents int64
}

type Repository interface {
	// Create writes the order and its item snapshots in one
	// transaction and returns the stored order, including its
	// generated order number.
	Create(ctx context.Context, in CreateInput) (*domain.Order, error)
	// GetBySessionID is the settlement idempotency check: it reports
	// whether a checkout session has already produced an order.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
}
