// Package inventory owns every mutation of product stock. All methods run
// inside a transaction supplied by the caller; the ledger never commits or
// rolls back itself.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/google/uuid"
)

// Demand is one product's requested quantity in cart units (count for piece
// goods, grams for weight goods).
type Demand struct {
	ProductID uuid.UUID
	Quantity  int64
}

// InsufficientStockError aggregates every under-stocked product in the
// attempted reservation. This is a business rejection, not a fault.
type InsufficientStockError struct {
	Products []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for: %s", strings.Join(e.Products, ", "))
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

const lockProductQuery = `
		SELECT id, name, description, unit_price, unit_kind, stock_quantity, is_available, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`

// sortDemands orders demands by ascending product ID so that every
// transaction acquires row locks in the same order. Overlapping reservations
// then block instead of deadlocking.
func sortDemands(demands []Demand) []Demand {
	sorted := make([]Demand, len(demands))
	copy(sorted, demands)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	return sorted
}

func lockProduct(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Product, error) {

	product := &models.Product{}

	err := tx.QueryRowContext(ctx, lockProductQuery, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.UnitPrice,
		&product.UnitKind,
		&product.StockQuantity,
		&product.IsAvailable,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock product %s: %w", id, err)
	}

	return product, nil
}

// Reserve locks every referenced product row, verifies all demands against
// current stock, and decrements each row. It checks every demand before
// touching any stock so the caller gets the full list of shortfalls in one
// round trip. On success it returns the locked product snapshots; their
// prices are the ones the order must freeze.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, demands []Demand) (map[uuid.UUID]*models.Product, error) {

	locked := make(map[uuid.UUID]*models.Product, len(demands))

	var shortfall []string

	for _, demand := range sortDemands(demands) {

		product, err := lockProduct(ctx, tx, demand.ProductID)
		if err != nil {
			return nil, err
		}

		need := product.UnitKind.ToNatural(demand.Quantity)

		if !product.IsAvailable || need > product.StockQuantity {
			shortfall = append(shortfall, product.Name)
			continue
		}

		locked[product.ID] = product
	}

	if len(shortfall) > 0 {
		return nil, &InsufficientStockError{Products: shortfall}
	}

	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2
	`

	for _, demand := range sortDemands(demands) {

		product := locked[demand.ProductID]
		need := product.UnitKind.ToNatural(demand.Quantity)

		if _, err := tx.ExecContext(ctx, query, need, demand.ProductID); err != nil {
			return nil, fmt.Errorf("failed to decrement stock for product %s: %w", demand.ProductID, err)
		}
	}

	return locked, nil
}

// Restore puts reserved stock back, converting each demand to the product's
// natural unit. Restores are not validated against any ceiling.
func (l *Ledger) Restore(ctx context.Context, tx *sql.Tx, demands []Demand) error {

	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE id = $2
	`

	for _, demand := range sortDemands(demands) {

		product, err := lockProduct(ctx, tx, demand.ProductID)
		if err != nil {
			return err
		}

		back := product.UnitKind.ToNatural(demand.Quantity)

		if _, err := tx.ExecContext(ctx, query, back, demand.ProductID); err != nil {
			return fmt.Errorf("failed to restore stock for product %s: %w", demand.ProductID, err)
		}
	}

	return nil
}
