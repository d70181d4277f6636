package service

import (
	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/domain"
	"github.com/maziwacoop/settlement-engine/pkg/utils"
)

// ApprovalDraft is the computed outcome for one collection before it is
// persisted as a CollectionApproval.
type ApprovalDraft struct {
	CollectionID       string
	CollectedLiters    float64
	ReceivedLiters     float64
	VarianceType       string
	VariancePercentage float64
	PenaltyAmount      decimal.Decimal
}

// VarianceCalculator computes quantity variance and monetary penalties for
// batches of collections. Pure computation: no store access, no clock.
type VarianceCalculator struct {
	penaltyRatePerLiter decimal.Decimal
}

func NewVarianceCalculator(penaltyRatePerLiter decimal.Decimal) *VarianceCalculator {
	return &VarianceCalculator{penaltyRatePerLiter: penaltyRatePerLiter}
}

// ComputeOne classifies the variance for a single collection and prices the
// shortfall penalty. Over-delivery is never penalized; a difference below
// the liter epsilon counts as no variance.
func (c *VarianceCalculator) ComputeOne(collectionID string, collectedLiters, receivedLiters float64) ApprovalDraft {
	draft := ApprovalDraft{
		CollectionID:    collectionID,
		CollectedLiters: collectedLiters,
		ReceivedLiters:  receivedLiters,
		VarianceType:    domain.VarianceNone,
		PenaltyAmount:   decimal.Zero,
	}

	if collectedLiters == 0 || utils.LitersEqual(collectedLiters, receivedLiters) {
		return draft
	}

	draft.VariancePercentage = (receivedLiters - collectedLiters) / collectedLiters * 100

	if receivedLiters > collectedLiters {
		draft.VarianceType = domain.VariancePositive
		return draft
	}

	draft.VarianceType = domain.VarianceNegative
	draft.PenaltyAmount = utils.MoneyFromLiters(collectedLiters-receivedLiters, c.penaltyRatePerLiter)
	return draft
}

// ComputeBatch computes drafts for a batch of collections against a single
// aggregate scale reading (the common staff workflow: one weighing per
// collector per day). The aggregate is distributed across collections
// proportionally to each one's share of the recorded total. A nil
// receivedTotal means no weighing was supplied and each collection is taken
// at its recorded liters.
func (c *VarianceCalculator) ComputeBatch(collections []*domain.Collection, receivedTotal *float64) []ApprovalDraft {
	drafts := make([]ApprovalDraft, 0, len(collections))

	if receivedTotal == nil {
		for _, col := range collections {
			drafts = append(drafts, c.ComputeOne(col.ID, col.Liters, col.Liters))
		}
		return drafts
	}

	var collectedTotal float64
	for _, col := range collections {
		collectedTotal += col.Liters
	}

	for _, col := range collections {
		received := 0.0
		if collectedTotal > 0 {
			received = *receivedTotal * (col.Liters / collectedTotal)
		}
		drafts = append(drafts, c.ComputeOne(col.ID, col.Liters, received))
	}

	return drafts
}
