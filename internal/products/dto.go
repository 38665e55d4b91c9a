package products

// ProductForm is the create and update payload.
type ProductForm struct {
	SKU         string `json:"sku" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	CategoryID  string `json:"categoryId" validate:"omitempty,uuid"`
	PriceCents  int64  `json:"priceCents" validate:"gte=0"`
	// SellerID lists the product for another seller. Honoured on create only.
	SellerID string `json:"sellerId,omitempty" validate:"omitempty,max=64"`
}

// StatusForm moves a product through moderation.
type StatusForm struct {
	Status string `json:"status" validate:"required,oneof=active rejected"`
}
