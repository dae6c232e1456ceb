package models_test

import (
	"testing"

	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUnitKindToNatural(t *testing.T) {
	t.Run("weight converts grams to kilograms", func(t *testing.T) {
		assert.InDelta(t, 1.5, models.UnitKindWeight.ToNatural(1500), 1e-9)
		assert.InDelta(t, 0.25, models.UnitKindWeight.ToNatural(250), 1e-9)
	})

	t.Run("piece passes counts through", func(t *testing.T) {
		assert.Equal(t, 3.0, models.UnitKindPiece.ToNatural(3))
	})
}

func TestUnitKindCartUnits(t *testing.T) {
	t.Run("weight stock in kilograms becomes grams", func(t *testing.T) {
		assert.Equal(t, int64(5000), models.UnitKindWeight.CartUnits(5))
		assert.Equal(t, int64(400), models.UnitKindWeight.CartUnits(0.4))
	})

	t.Run("piece stock is already in cart units", func(t *testing.T) {
		assert.Equal(t, int64(12), models.UnitKindPiece.CartUnits(12))
	})
}

func TestUnitKindSubtotal(t *testing.T) {
	t.Run("weight prices per kilogram", func(t *testing.T) {
		// 1500 g at 200/kg
		assert.InDelta(t, 300.0, models.UnitKindWeight.Subtotal(200, 1500), 1e-9)
	})

	t.Run("piece prices per unit", func(t *testing.T) {
		assert.InDelta(t, 150.0, models.UnitKindPiece.Subtotal(50, 3), 1e-9)
	})
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    models.OrderStatus
		to      models.OrderStatus
		allowed bool
	}{
		{models.OrderStatusPending, models.OrderStatusProcessing, true},
		{models.OrderStatusPending, models.OrderStatusCancelled, true},
		{models.OrderStatusPending, models.OrderStatusDelivered, false},
		{models.OrderStatusProcessing, models.OrderStatusDelivered, true},
		{models.OrderStatusProcessing, models.OrderStatusCancelled, false},
		{models.OrderStatusProcessing, models.OrderStatusPending, false},
		{models.OrderStatusDelivered, models.OrderStatusProcessing, false},
		{models.OrderStatusCancelled, models.OrderStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"transition %s -> %s", tc.from, tc.to)
	}
}
