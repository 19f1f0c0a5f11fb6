package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"lavenderlily/internal/domain"
	"lavenderlily/internal/payments"
	orderrepo "lavenderlily/internal/repository/order"
	cartsvc "lavenderlily/internal/service/cart"
)

// State is the outcome of one verification attempt. A session starts
// out Verifying and ends Settled or Failed; Settled is sticky across
// repeated attempts.
type State string

const (
	StateVerifying State = "verifying"
	StateSettled   State = "settled"
	StateFailed    State = "failed"
)

// Result is what the presentation layer renders after a payment
// redirect. OrderNumber is set only when State is Settled.
type Result struct {
	State       State  `json:"state"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type orderStore interface {
	Create(ctx context.Context, in orderrepo.CreateInput) (*domain.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
}

type cartFacade interface {
	Lines(ctx context.Context, shopper cartsvc.Shopper) ([]domain.DisplayLine, error)
	Clear(ctx context.Context, shopper cartsvc.Shopper) error
}

// Service confirms provider payment outcomes and converts paid
// sessions into orders exactly once.
type Service struct {
	orders   orderStore
	cart     cartFacade
	provider payments.Provider
	logger   *log.Logger
}

func New(orders orderStore, cart cartFacade, provider payments.Provider, logger *log.Logger) *Service {
	return &Service{orders: orders, cart: cart, provider: provider, logger: logger}
}

// Verify resolves a checkout session to its settlement outcome.
//
// A session already settled returns the existing order without
// touching the cart or creating anything, so the shopper can revisit
// the confirmation page safely. An unpaid or unknown session fails
// and leaves the cart untouched, preserving it for another attempt.
// A paid session snapshots the persisted cart into an order, clears
// the cart, and settles.
func (s *Service) Verify(ctx context.Context, shopper cartsvc.Shopper, sessionID string) (*Result, error) {
	if sessionID == "" {
		return &Result{State: StateFailed, Reason: "missing session id"}, nil
	}
	if !shopper.Authenticated() {
		return &Result{State: StateFailed, Reason: "sign in to verify your payment"}, nil
	}

	existing, err := s.orders.GetBySessionID(ctx, sessionID)
	if err == nil {
		return &Result{State: StateSettled, OrderNumber: existing.OrderNumber}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	details, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logger.Printf("settlement: session %s lookup failed: %v", sessionID, err)
		return &Result{State: StateFailed, Reason: "payment could not be verified"}, nil
	}
	if !details.Paid() {
		return &Result{State: StateFailed, Reason: "payment not completed"}, nil
	}
	if owner := details.Metadata["user_id"]; owner != "" && owner != shopper.UserID {
		return &Result{State: StateFailed, Reason: "session belongs to another account"}, nil
	}

	order, err := s.createOrder(ctx, shopper, details)
	if err != nil {
		// A concurrent verification of the same session can win the
		// insert; its order settles this attempt too.
		if errors.Is(err, domain.ErrAlreadyExists) {
			if won, lookupErr := s.orders.GetBySessionID(ctx, details.ID); lookupErr == nil {
				return &Result{State: StateSettled, OrderNumber: won.OrderNumber}, nil
			}
		}
		return nil, err
	}

	if err := s.cart.Clear(ctx, shopper); err != nil {
		// The order exists either way; the stale cart is recoverable.
		s.logger.Printf("settlement: clear cart for %s: %v", shopper.UserID, err)
	}

	return &Result{State: StateSettled, OrderNumber: order.OrderNumber}, nil
}

func (s *Service) createOrder(ctx context.Context, shopper cartsvc.Shopper, details *payments.SessionDetails) (*domain.Order, error) {
	lines, err := s.cart.Lines(ctx, shopper)
	if err != nil {
		return nil, err
	}

	items := make([]orderrepo.ItemInput, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		items = append(items, orderrepo.ItemInput{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			ProductImage:   line.ImageURL,
			Quantity:       line.Quantity,
			Variant:        line.Variant,
			UnitPriceCents: line.UnitPriceCents,
		})
		subtotal += line.TotalCents
	}

	shippingCents, _ := strconv.ParseInt(details.Metadata["shipping_cents"], 10, 64)
	shippingAddr := decodeAddress(details.Metadata["shipping_address"])
	billingAddr := decodeAddress(details.Metadata["billing_address"])

	return s.orders.Create(ctx, orderrepo.CreateInput{
		UserID:          shopper.UserID,
		SessionID:       details.ID,
		Currency:        details.Currency,
		SubtotalCents:   subtotal,
		ShippingCents:   shippingCents,
		TotalCents:      details.AmountCents,
		ShippingAddress: shippingAddr,
		BillingAddress:  billingAddr,
		Items:           items,
	})
}

func decodeAddress(raw string) domain.Address {
	var addr domain.Address
	if raw == "" {
		return addr
	}
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return domain.Address{}
	}
	return addr
}
