package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"lavenderlily/internal/domain"
	"lavenderlily/internal/repository/cartline"
)

// Narrow consumer-side interfaces over the stores this service uses.
type guestStore interface {
	Read(ctx context.Context, guestID string) ([]domain.CartLine, error)
	Write(ctx context.Context, guestID string, lines []domain.CartLine) error
	Clear(ctx context.Context, guestID string) error
}

type lineRepo interface {
	ListForUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	Insert(ctx context.Context, in cartline.InsertInput) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	Delete(ctx context.Context, lineID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// Service is the cart facade: the only cart API the HTTP layer calls.
// It hides whether the shopper is a guest or authenticated, serializes
// mutations per owner, and publishes a change event after every write.
type Service struct {
	guests   guestStore
	lines    lineRepo
	products productRepo
	notifier *Notifier
	logger   *log.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	merges map[string]struct{}
}

func New(guests guestStore, lines lineRepo, products productRepo, notifier *Notifier, logger *log.Logger) *Service {
	return &Service{
		guests:   guests,
		lines:    lines,
		products: products,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		merges:   make(map[string]struct{}),
	}
}

func (s *Service) backendFor(shopper Shopper) backend {
	if shopper.Authenticated() {
		return userBackend{repo: s.lines, userID: shopper.UserID}
	}
	return guestBackend{store: s.guests, guestID: shopper.GuestID}
}

// ownerLock serializes mutations for one cart owner. The guest slot's
// write-the-whole-collection contract would lose updates under
// concurrent read-modify-write otherwise.
func (s *Service) ownerLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// AddLine puts quantity of a (product, variant) configuration in the
// cart. If a matching line already exists its quantity is incremented;
// a second line is never created for the same configuration.
func (s *Service) AddLine(ctx context.Context, shopper Shopper, productID string, quantity int, variant domain.Variant) error {
	if productID == "" {
		return errors.New("productId required")
	}
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errors.New("product not found")
		}
		return retryable(err)
	}

	lock := s.ownerLock(shopper.Key())
	lock.Lock()
	err := s.backendFor(shopper).add(ctx, productID, quantity, variant)
	lock.Unlock()
	if err != nil {
		return retryable(err)
	}

	s.notifier.Publish(ctx, shopper.Key())
	return nil
}

// SetQuantity changes a line's quantity; zero or negative removes the
// line entirely, a non-positive quantity is never stored.
func (s *Service) SetQuantity(ctx context.Context, shopper Shopper, lineID string, quantity int) error {
	if lineID == "" {
		return errors.New("lineId required")
	}

	lock := s.ownerLock(shopper.Key())
	lock.Lock()
	err := s.backendFor(shopper).setQuantity(ctx, lineID, quantity)
	lock.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return retryable(err)
	}

	s.notifier.Publish(ctx, shopper.Key())
	return nil
}

// RemoveLine deletes a line outright.
func (s *Service) RemoveLine(ctx context.Context, shopper Shopper, lineID string) error {
	if lineID == "" {
		return errors.New("lineId required")
	}

	lock := s.ownerLock(shopper.Key())
	lock.Lock()
	err := s.backendFor(shopper).remove(ctx, lineID)
	lock.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return retryable(err)
	}

	s.notifier.Publish(ctx, shopper.Key())
	return nil
}

// Clear empties whichever store is authoritative for the shopper.
func (s *Service) Clear(ctx context.Context, shopper Shopper) error {
	lock := s.ownerLock(shopper.Key())
	lock.Lock()
	err := s.backendFor(shopper).clear(ctx)
	lock.Unlock()
	if err != nil {
		return retryable(err)
	}

	s.notifier.Publish(ctx, shopper.Key())
	return nil
}

// Lines returns the cart snapshot joined with live catalog data. Lines
// whose product no longer exists are dropped from the view rather than
// surfaced as errors.
func (s *Service) Lines(ctx context.Context, shopper Shopper) ([]domain.DisplayLine, error) {
	raw, err := s.backendFor(shopper).lines(ctx)
	if err != nil {
		if !shopper.Authenticated() {
			// Guest storage unavailable degrades to an empty cart.
			s.logger.Printf("guest cart read failed, serving empty: %v", err)
			return nil, nil
		}
		return nil, retryable(err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(raw))
	for _, line := range raw {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, retryable(err)
	}

	out := make([]domain.DisplayLine, 0, len(raw))
	for _, line := range raw {
		product, ok := catalog[line.ProductID]
		if !ok {
			continue
		}
		out = append(out, domain.DisplayLine{
			CartLine:       line,
			ProductName:    product.Name,
			ProductSlug:    product.Slug,
			ImageURL:       product.ImageURL,
			UnitPriceCents: product.PriceCents,
			TotalCents:     product.PriceCents * int64(line.Quantity),
		})
	}
	return out, nil
}

// Subtotal is the sum of quantity times the current unit price over
// all lines, recomputed from the live catalog on every call.
func (s *Service) Subtotal(ctx context.Context, shopper Shopper) (int64, error) {
	lines, err := s.Lines(ctx, shopper)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, line := range lines {
		total += line.TotalCents
	}
	return total, nil
}

// Count is the total quantity across all lines.
func (s *Service) Count(ctx context.Context, shopper Shopper) (int, error) {
	lines, err := s.Lines(ctx, shopper)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count, nil
}

// Subscribe hands out a change event stream; callers re-read the
// snapshot on every event.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.notifier.Subscribe()
}

// retryable marks store/network failures so callers can distinguish
// them from terminal ones. ErrNotFound passes through unchanged.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
