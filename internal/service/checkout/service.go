package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"lavenderlily/internal/domain"
	"lavenderlily/internal/payments"
	cartsvc "lavenderlily/internal/service/cart"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSignInRequired is returned for anonymous checkout attempts.
	ErrSignInRequired = errors.New("sign in to complete your order")
)

// ValidationError lists the required fields missing from a checkout
// request. It is returned before any side effect is performed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

type cartReader interface {
	Lines(ctx context.Context, shopper cartsvc.Shopper) ([]domain.DisplayLine, error)
}

type catalogReader interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Config holds the redirect URLs and currency for created sessions.
type Config struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// Service converts the current cart into a hosted payment session. It
// never mutates cart, catalog, or inventory state; its only output is
// the provider session handle. Repeated attempts each create a brand
// new session; abandoned ones expire provider-side.
type Service struct {
	cart          cartReader
	catalog       catalogReader
	provider      payments.Provider
	config        Config
	maxConcurrent int
}

func New(cart cartReader, catalog catalogReader, provider payments.Provider, cfg Config) *Service {
	return &Service{
		cart:          cart,
		catalog:       catalog,
		provider:      provider,
		config:        cfg,
		maxConcurrent: 8,
	}
}

// Details are the shopper-entered contact fields.
type Details struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Input is one checkout attempt against the shopper's current cart.
type Input struct {
	Details         Details         `json:"customerDetails"`
	ShippingAddress domain.Address  `json:"shippingAddress"`
	BillingAddress  *domain.Address `json:"billingAddress,omitempty"`
	ShippingCents   int64           `json:"shippingCents"`
}

// Session is the handle handed back to the presentation layer, which
// navigates the shopper to URL.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ShippingCostCents maps a shipping option to its cost.
func ShippingCostCents(option string) int64 {
	switch option {
	case "express":
		return 1500
	case "overnight":
		return 3500
	default:
		return 0
	}
}

func validate(in Input) error {
	var missing []string
	if strings.TrimSpace(in.Details.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.Details.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(in.Details.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if strings.TrimSpace(in.ShippingAddress.Street) == "" {
		missing = append(missing, "shippingAddress.street")
	}
	if strings.TrimSpace(in.ShippingAddress.City) == "" {
		missing = append(missing, "shippingAddress.city")
	}
	if strings.TrimSpace(in.ShippingAddress.PostalCode) == "" {
		missing = append(missing, "shippingAddress.postalCode")
	}
	if strings.TrimSpace(in.ShippingAddress.Country) == "" {
		missing = append(missing, "shippingAddress.country")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// CreateSession validates the request, snapshots the cart with unit
// prices captured at this instant, and creates a provider session: one
// line item per cart line plus a synthetic shipping line when shipping
// is non-zero. Validation failures report the missing fields and
// perform no side effect.
func (s *Service) CreateSession(ctx context.Context, shopper cartsvc.Shopper, in Input) (*Session, error) {
	if !shopper.Authenticated() {
		return nil, ErrSignInRequired
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	lines, err := s.cart.Lines(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Re-read every product so the session captures prices as of this
	// instant, not of the last cart render.
	items := make([]payments.LineItem, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for idx := range lines {
		idx := idx
		g.Go(func() error {
			line := lines[idx]
			product, err := s.catalog.GetByID(gctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("resolve product %s: %w", line.ProductID, err)
			}
			items[idx] = payments.LineItem{
				Name:        displayName(product.Name, line.Variant),
				ImageURL:    product.ImageURL,
				AmountCents: product.PriceCents,
				Quantity:    int64(line.Quantity),
				Currency:    s.config.Currency,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if in.ShippingCents > 0 {
		items = append(items, payments.LineItem{
			Name:        "Shipping",
			AmountCents: in.ShippingCents,
			Quantity:    1,
			Currency:    s.config.Currency,
		})
	}

	// The verifier creates the order from session metadata alone, so
	// the addresses travel with the session.
	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}
	shippingJSON, err := json.Marshal(in.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return nil, fmt.Errorf("encode billing address: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutParams{
		SuccessURL:    s.config.SuccessURL,
		CancelURL:     s.config.CancelURL,
		CustomerEmail: strings.TrimSpace(in.Details.Email),
		Metadata: map[string]string{
			"user_id":          shopper.UserID,
			"shipping_cents":   strconv.FormatInt(in.ShippingCents, 10),
			"shipping_address": string(shippingJSON),
			"billing_address":  string(billingJSON),
		},
		LineItems: items,
	})
	if err != nil {
		return nil, err
	}

	return &Session{ID: session.ID, URL: session.URL}, nil
}

func displayName(name string, variant domain.Variant) string {
	var parts []string
	if variant.Size != "" {
		parts = append(parts, "Size "+variant.Size)
	}
	if variant.Color != "" {
		parts = append(parts, variant.Color)
	}
	if len(parts) == 0 {
		return name
	}
	return name + " (" + strings.Join(parts, ", ") + ")"
}
