package products

import (
	"time"
)

// Product statuses.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// Product represents a catalogue item listed by a seller.
type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"sellerId"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListFilters represents list query filters.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	SortBy     string
	SortDir    string
	SellerID   string
	CategoryID string
	Status     string
}

// ListResult is one page of products.
type ListResult struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}
