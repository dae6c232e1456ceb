// Package pricing holds the pure unit-aware price math. Callers pass in the
// unit price they want applied, so they control when a price is snapshotted.
package pricing

import "github.com/freshgrove/fulfillment/internal/models"

// Subtotal prices a quantity of a product at the given unit price. For weight
// goods the quantity is grams and the price is per kilogram; for piece goods
// both are plain counts.
func Subtotal(unitKind models.UnitKind, unitPrice float64, quantity int64) float64 {
	return unitKind.Subtotal(unitPrice, quantity)
}

// Line prices a product at its current catalog price.
func Line(product *models.Product, quantity int64) float64 {
	return Subtotal(product.UnitKind, product.UnitPrice, quantity)
}
