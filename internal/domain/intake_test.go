package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIntakeStatusTransitions(t *testing.T) {
	tests := []struct {
		from IntakeStatus
		to   IntakeStatus
		ok   bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusVerified, false},
		{StatusProcessing, StatusVerified, true},
		{StatusProcessing, StatusPending, false},
		{StatusVerified, StatusApproved, true},
		{StatusVerified, StatusRejected, true},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusVerified.Terminal())
	assert.False(t, IntakeStatus("archived").Valid())
}

func TestIntakeKindValid(t *testing.T) {
	for _, k := range IntakeKinds {
		assert.True(t, k.Valid())
	}
	assert.False(t, IntakeKind("mortgage").Valid())
	assert.Equal(t, "Survey request", IntakeSurvey.Label())
}

func TestCartTotals(t *testing.T) {
	c := Cart{Items: []CartLineItem{
		{ProductRef: 1, Quantity: 200, Snapshot: LineSnapshot{Price: decimal.RequireFromString("450.50")}},
		{ProductRef: 2, Quantity: 10, Snapshot: LineSnapshot{Price: decimal.RequireFromString("3")}},
	}}
	assert.True(t, decimal.RequireFromString("90130").Equal(c.Total()))
	assert.Equal(t, 1, c.IndexOf(2))
	assert.Equal(t, -1, c.IndexOf(3))
}

func TestEffectiveMinOrderQty(t *testing.T) {
	assert.Equal(t, 200, Product{}.EffectiveMinOrderQty(200))
	assert.Equal(t, 50, Product{MinOrderQty: 50}.EffectiveMinOrderQty(200))
	assert.Equal(t, 1, Product{}.EffectiveMinOrderQty(0))
	assert.False(t, Product{Available: true}.Purchasable())
	assert.True(t, Product{Available: true, Stock: 1}.Purchasable())
}
