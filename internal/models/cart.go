package models

import (
	"time"

	"github.com/google/uuid"
)

// CartEntry is a pending selection. Quantity is a count for piece goods and
// a gram amount for weight goods; the unit is implicit per product.
type CartEntry struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// Cart is session-scoped state owned by a single user; one entry per product.
type Cart struct {
	UserID    uuid.UUID            `json:"user_id"`
	Entries   map[string]CartEntry `json:"entries"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func NewCart(userID uuid.UUID) *Cart {
	return &Cart{
		UserID:    userID,
		Entries:   make(map[string]CartEntry),
		UpdatedAt: time.Now(),
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Entries) == 0
}

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int64     `json:"quantity"   validate:"required,min=1"`
}

type UpdateQuantityRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int64     `json:"quantity"   validate:"required,min=0"`
}

type ReplaceCartRequest struct {
	Entries []CartEntry `json:"entries" validate:"required,dive"`
}

// CartLine is one priced row of a cart summary. Subtotals here use the
// current catalog price; prices are only frozen at checkout.
type CartLine struct {
	Product  *Product `json:"product"`
	Quantity int64    `json:"quantity"`
	Subtotal float64  `json:"subtotal"`
}

type CartSummary struct {
	Lines []CartLine `json:"lines"`
	Total float64    `json:"total"`
}
