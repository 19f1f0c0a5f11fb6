package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"lavenderlily/internal/domain"
	"lavenderlily/internal/repository/cartline"
)

// Shopper identifies whose cart an operation targets. Once UserID is
// set the guest identity is dead: the persisted store is authoritative
// and there is no way back to the guest slot.
type Shopper struct {
	UserID  string
	GuestID string
}

// Authenticated reports whether the shopper has signed in.
func (s Shopper) Authenticated() bool { return s.UserID != "" }

// Key is the owner key used for write serialization and change events.
func (s Shopper) Key() string {
	if s.UserID != "" {
		return "user:" + s.UserID
	}
	return "guest:" + s.GuestID
}

// backend is the tagged variant behind the facade: exactly one of the
// two stores serves a shopper at any moment.
type backend interface {
	lines(ctx context.Context) ([]domain.CartLine, error)
	add(ctx context.Context, productID string, quantity int, variant domain.Variant) error
	setQuantity(ctx context.Context, lineID string, quantity int) error
	remove(ctx context.Context, lineID string) error
	clear(ctx context.Context) error
}

// guestBackend serves an anonymous shopper from the single-slot guest
// store: read the whole collection, apply the change, write it back.
type guestBackend struct {
	store   guestStore
	guestID string
}

func (b guestBackend) lines(ctx context.Context) ([]domain.CartLine, error) {
	return b.store.Read(ctx, b.guestID)
}

func (b guestBackend) add(ctx context.Context, productID string, quantity int, variant domain.Variant) error {
	current, err := b.store.Read(ctx, b.guestID)
	if err != nil {
		// An unreadable slot degrades to empty; the add still lands.
		current = nil
	}
	for i, line := range current {
		if line.Matches(productID, variant) {
			current[i].Quantity += quantity
			return b.store.Write(ctx, b.guestID, current)
		}
	}
	current = append(current, domain.CartLine{
		ID:        "guest_" + uuid.NewString(),
		ProductID: productID,
		Quantity:  quantity,
		Variant:   variant,
		CreatedAt: time.Now().UTC(),
	})
	return b.store.Write(ctx, b.guestID, current)
}

func (b guestBackend) setQuantity(ctx context.Context, lineID string, quantity int) error {
	current, err := b.store.Read(ctx, b.guestID)
	if err != nil {
		return err
	}
	for i, line := range current {
		if line.ID != lineID {
			continue
		}
		if quantity <= 0 {
			current = append(current[:i], current[i+1:]...)
		} else {
			current[i].Quantity = quantity
		}
		return b.store.Write(ctx, b.guestID, current)
	}
	return domain.ErrNotFound
}

func (b guestBackend) remove(ctx context.Context, lineID string) error {
	return b.setQuantity(ctx, lineID, 0)
}

func (b guestBackend) clear(ctx context.Context) error {
	return b.store.Clear(ctx, b.guestID)
}

// userBackend serves an authenticated shopper from the persisted cart
// store. The store itself enforces no cross-line invariants, so the
// one-line-per-configuration rule is kept here: look up a matching
// line before inserting.
type userBackend struct {
	repo   lineRepo
	userID string
}

func (b userBackend) lines(ctx context.Context) ([]domain.CartLine, error) {
	return b.repo.ListForUser(ctx, b.userID)
}

func (b userBackend) add(ctx context.Context, productID string, quantity int, variant domain.Variant) error {
	existing, err := b.repo.ListForUser(ctx, b.userID)
	if err != nil {
		return err
	}
	for _, line := range existing {
		if line.Matches(productID, variant) {
			return b.repo.UpdateQuantity(ctx, line.ID, line.Quantity+quantity)
		}
	}

	_, err = b.repo.Insert(ctx, cartline.InsertInput{
		UserID:    b.userID,
		ProductID: productID,
		Quantity:  quantity,
		Variant:   variant,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Another device inserted the same configuration between our
		// lookup and insert; fall back to incrementing that line.
		return b.incrementExisting(ctx, productID, variant, quantity)
	}
	return err
}

func (b userBackend) incrementExisting(ctx context.Context, productID string, variant domain.Variant, quantity int) error {
	existing, err := b.repo.ListForUser(ctx, b.userID)
	if err != nil {
		return err
	}
	for _, line := range existing {
		if line.Matches(productID, variant) {
			return b.repo.UpdateQuantity(ctx, line.ID, line.Quantity+quantity)
		}
	}
	return domain.ErrNotFound
}

func (b userBackend) setQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return b.repo.Delete(ctx, lineID)
	}
	return b.repo.UpdateQuantity(ctx, lineID, quantity)
}

func (b userBackend) remove(ctx context.Context, lineID string) error {
	return b.repo.Delete(ctx, lineID)
}

func (b userBackend) clear(ctx context.Context) error {
	return b.repo.DeleteAllForUser(ctx, b.userID)
}
