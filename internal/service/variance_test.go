package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

func TestComputeOne(t *testing.T) {
	calculator := NewVarianceCalculator(decimal.NewFromInt(50))

	tests := []struct {
		name            string
		collected       float64
		received        float64
		expectedType    string
		expectedPct     float64
		expectedPenalty decimal.Decimal
	}{
		{
			name:            "exact match is no variance",
			collected:       100,
			received:        100,
			expectedType:    domain.VarianceNone,
			expectedPct:     0,
			expectedPenalty: decimal.Zero,
		},
		{
			name:            "shortfall is negative and penalized",
			collected:       100,
			received:        95,
			expectedType:    domain.VarianceNegative,
			expectedPct:     -5,
			expectedPenalty: decimal.NewFromInt(250), // 5L * 50
		},
		{
			name:            "over-delivery is positive and free",
			collected:       100,
			received:        105,
			expectedType:    domain.VariancePositive,
			expectedPct:     5,
			expectedPenalty: decimal.Zero,
		},
		{
			name:            "difference below epsilon counts as none",
			collected:       100,
			received:        100.0005,
			expectedType:    domain.VarianceNone,
			expectedPct:     0,
			expectedPenalty: decimal.Zero,
		},
		{
			name:            "zero collected never divides",
			collected:       0,
			received:        10,
			expectedType:    domain.VarianceNone,
			expectedPct:     0,
			expectedPenalty: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := calculator.ComputeOne("col-1", tt.collected, tt.received)

			assert.Equal(t, tt.expectedType, draft.VarianceType)
			assert.InDelta(t, tt.expectedPct, draft.VariancePercentage, 1e-9)
			assert.True(t, draft.PenaltyAmount.Equal(tt.expectedPenalty),
				"Expected penalty %v, but got %v", tt.expectedPenalty, draft.PenaltyAmount)
		})
	}
}

func TestComputeBatch_ProportionalDistribution(t *testing.T) {
	calculator := NewVarianceCalculator(decimal.NewFromInt(50))

	collections := []*domain.Collection{
		{ID: "col-1", Liters: 60},
		{ID: "col-2", Liters: 40},
	}
	receivedTotal := 95.0

	drafts := calculator.ComputeBatch(collections, &receivedTotal)

	assert.Len(t, drafts, 2)

	// 95 distributed as 60/100 and 40/100 of the total.
	assert.InDelta(t, 57, drafts[0].ReceivedLiters, 1e-9)
	assert.InDelta(t, 38, drafts[1].ReceivedLiters, 1e-9)

	assert.Equal(t, domain.VarianceNegative, drafts[0].VarianceType)
	assert.Equal(t, domain.VarianceNegative, drafts[1].VarianceType)

	// 3L and 2L shortfalls at 50 per liter.
	assert.True(t, drafts[0].PenaltyAmount.Equal(decimal.NewFromInt(150)),
		"Expected 150, but got %v", drafts[0].PenaltyAmount)
	assert.True(t, drafts[1].PenaltyAmount.Equal(decimal.NewFromInt(100)),
		"Expected 100, but got %v", drafts[1].PenaltyAmount)
}

func TestComputeBatch_NoReadingTakesRecordedLiters(t *testing.T) {
	calculator := NewVarianceCalculator(decimal.NewFromInt(50))

	collections := []*domain.Collection{
		{ID: "col-1", Liters: 25.5},
		{ID: "col-2", Liters: 12},
	}

	drafts := calculator.ComputeBatch(collections, nil)

	assert.Len(t, drafts, 2)
	for i, draft := range drafts {
		assert.Equal(t, collections[i].Liters, draft.ReceivedLiters)
		assert.Equal(t, domain.VarianceNone, draft.VarianceType)
		assert.True(t, draft.PenaltyAmount.IsZero())
	}
}

func TestComputeBatch_ZeroCollectedTotal(t *testing.T) {
	calculator := NewVarianceCalculator(decimal.NewFromInt(50))

	collections := []*domain.Collection{
		{ID: "col-1", Liters: 0},
	}
	receivedTotal := 10.0

	drafts := calculator.ComputeBatch(collections, &receivedTotal)

	assert.Len(t, drafts, 1)
	assert.Equal(t, domain.VarianceNone, drafts[0].VarianceType)
	assert.True(t, drafts[0].PenaltyAmount.IsZero())
}
