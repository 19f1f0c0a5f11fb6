package domain

import "time"

// Variant narrows a product to one purchasable configuration. An empty
// field means the product has no such axis.
type Variant struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Equal reports whether two variants describe the same configuration.
func (v Variant) Equal(o Variant) bool {
	return v.Size == o.Size && v.Color == o.Color
}

// CartLine is one distinct (product, variant) entry in a cart. Within
// one cart at most one line exists per (ProductID, Variant) pair.
type CartLine struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Variant   Variant   `json:"variant"`
	CreatedAt time.Time `json:"createdAt"`
}

// Matches reports whether the line holds the given configuration.
func (l CartLine) Matches(productID string, variant Variant) bool {
	return l.ProductID == productID && l.Variant.Equal(variant)
}

// DisplayLine joins a cart line with catalog data read at display time.
// Unit prices stay live until an order freezes them.
type DisplayLine struct {
	CartLine
	ProductName    string `json:"productName"`
	ProductSlug    string `json:"productSlug,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
}
