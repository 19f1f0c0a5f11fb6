package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Images      []string  `json:"images,omitempty"`
	CategoryID  *string   `json:"categoryId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
