package payments

import "context"

// LineItem describes one purchasable item in a checkout session.
type LineItem struct {
	Name        string
	ImageURL    string
	AmountCents int64
	Quantity    int64
	Currency    string
}

// CheckoutParams captures everything needed to create a hosted
// checkout session. The session is a frozen snapshot; restarting
// checkout creates a brand-new session.
type CheckoutParams struct {
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
	LineItems     []LineItem
}

// Session is the handle returned by session creation: an opaque id
// plus the URL the shopper is redirected to.
type Session struct {
	ID  string
	URL string
}

// Payment statuses reported by SessionDetails.PaymentStatus.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// SessionDetails is the authoritative provider-side state of an
// existing session, queried during settlement verification.
type SessionDetails struct {
	ID            string
	Status        string
	PaymentStatus string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

// Paid reports whether the provider confirmed the payment succeeded.
func (d SessionDetails) Paid() bool {
	return d.PaymentStatus == PaymentStatusPaid
}

// Provider is the hosted payment processor. It is the sole source of
// truth for whether a payment succeeded.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error)
}
