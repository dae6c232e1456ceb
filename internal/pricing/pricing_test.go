package pricing_test

import (
	"testing"

	"github.com/freshgrove/fulfillment/internal/models"
	"github.com/freshgrove/fulfillment/internal/pricing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSubtotal(t *testing.T) {
	t.Run("weight product priced per kilogram", func(t *testing.T) {
		assert.InDelta(t, 300.0, pricing.Subtotal(models.UnitKindWeight, 200, 1500), 1e-9)
		assert.InDelta(t, 120.0, pricing.Subtotal(models.UnitKindWeight, 480, 250), 1e-9)
	})

	t.Run("piece product priced per unit", func(t *testing.T) {
		assert.InDelta(t, 250.0, pricing.Subtotal(models.UnitKindPiece, 50, 5), 1e-9)
	})

	t.Run("caller controls the snapshot price", func(t *testing.T) {
		// Same quantity, two prices: the passed-in price wins.
		assert.InDelta(t, 300.0, pricing.Subtotal(models.UnitKindWeight, 200, 1500), 1e-9)
		assert.InDelta(t, 450.0, pricing.Subtotal(models.UnitKindWeight, 300, 1500), 1e-9)
	})
}

func TestLine(t *testing.T) {
	product := &models.Product{
		ID:        uuid.New(),
		Name:      "Smoked Ham",
		UnitPrice: 200,
		UnitKind:  models.UnitKindWeight,
	}

	assert.InDelta(t, 300.0, pricing.Line(product, 1500), 1e-9)
}

func TestStepPortionPolicy(t *testing.T) {
	policy := pricing.NewStepPortionPolicy(250, 250)

	cases := []struct {
		grams    int64
		expected int64
	}{
		{180, 250},  // below the floor
		{250, 250},  // exact step
		{300, 250},  // rounds down
		{375, 500},  // half rounds up
		{600, 500},  // round(600/250) = 2
		{1500, 1500},
		{1, 250},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, policy.Normalize(tc.grams), "normalize %d g", tc.grams)
	}
}

func TestStepPortionPolicyIsDeterministic(t *testing.T) {
	policy := pricing.NewStepPortionPolicy(250, 250)

	for range 10 {
		assert.Equal(t, int64(500), policy.Normalize(600))
	}
}

func TestNoPortionPolicy(t *testing.T) {
	assert.Equal(t, int64(180), pricing.NoPortionPolicy{}.Normalize(180))
}
