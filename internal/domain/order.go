package domain

import "time"

// Order statuses. The settlement flow only ever writes pending; the
// rest of the progression is driven by back-office actions.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Address is the contact/shipping snapshot captured at checkout.
type Address struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Order is the durable record written exactly once per settled
// checkout session. Item snapshots are independent of the live
// catalog, so later product edits never alter order history.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"-"`
	OrderNumber     string      `json:"orderNumber"`
	Status          string      `json:"status"`
	SessionID       string      `json:"-"`
	Currency        string      `json:"currency"`
	SubtotalCents   int64       `json:"subtotalCents"`
	ShippingCents   int64       `json:"shippingCents"`
	TotalCents      int64       `json:"totalCents"`
	ShippingAddress Address     `json:"shippingAddress"`
	BillingAddress  Address     `json:"billingAddress"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// OrderItem is a frozen copy of one cart line at settlement time.
type OrderItem struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"orderId"`
	ProductID      string  `json:"productId"`
	ProductName    string  `json:"productName"`
	ProductImage   string  `json:"productImage,omitempty"`
	Quantity       int     `json:"quantity"`
	Variant        Variant `json:"variant"`
	UnitPriceCents int64   `json:"unitPriceCents"`
	TotalCents     int64   `json:"totalCents"`
}
