package guestcart

import (
	"context"

	"lavenderlily/internal/domain"
)

// Store is the guest cart slot: one durable document per anonymous
// shopper holding the whole line collection. There are no per-line
// records; every mutation reads the full collection, applies the
// change, and writes the full collection back, so a reader never
// observes a partial update.
type Store interface {
	// Read returns the guest's lines in insertion order. A missing
	// slot is an empty cart, not an error.
	Read(ctx context.Context, guestID string) ([]domain.CartLine, error)
	// Write replaces the whole collection.
	Write(ctx context.Context, guestID string, lines []domain.CartLine) error
	Clear(ctx context.Context, guestID string) error
}
