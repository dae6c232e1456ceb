package models

import (
	"time"

	"github.com/google/uuid"
)

type UnitKind string

const (
	// Sold and stocked as an integer count.
	UnitKindPiece UnitKind = "piece"
	// Sold in grams, stocked in kilograms, priced per kilogram.
	UnitKindWeight UnitKind = "weight"
)

const gramsPerKilogram = 1000

// ToNatural converts a cart/order quantity into the unit the product's stock
// is kept in: grams become kilograms for weight goods, counts pass through.
func (k UnitKind) ToNatural(quantity int64) float64 {
	if k == UnitKindWeight {
		return float64(quantity) / gramsPerKilogram
	}

	return float64(quantity)
}

// CartUnits converts a stock level in natural units into the unit carts are
// expressed in (grams for weight goods).
func (k UnitKind) CartUnits(stock float64) int64 {
	if k == UnitKindWeight {
		return int64(stock * gramsPerKilogram)
	}

	return int64(stock)
}

// Subtotal prices a quantity against a per-natural-unit price.
func (k UnitKind) Subtotal(unitPrice float64, quantity int64) float64 {
	return unitPrice * k.ToNatural(quantity)
}

func (k UnitKind) Valid() bool {
	return k == UnitKindPiece || k == UnitKindWeight
}

// Product is catalog state. StockQuantity is kept in the product's natural
// unit (pieces or kilograms, never grams) and is only ever mutated inside a
// locked inventory transaction.
type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	UnitPrice     float64   `json:"unit_price"`
	UnitKind      UnitKind  `json:"unit_kind"`
	StockQuantity float64   `json:"stock_quantity"`
	IsAvailable   bool      `json:"is_available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
