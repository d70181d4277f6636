package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/domain"
	"github.com/maziwacoop/settlement-engine/internal/repository"
	customError "github.com/maziwacoop/settlement-engine/pkg/errors"
)

// BatchApprovalService approves all of one collector's pending collections
// for a given date in a single run, computing variance and penalties along
// the way.
type BatchApprovalService struct {
	collectionRepo repository.CollectionRepository
	calculator     *VarianceCalculator
}

func NewBatchApprovalService(collectionRepo repository.CollectionRepository, calculator *VarianceCalculator) *BatchApprovalService {
	return &BatchApprovalService{
		collectionRepo: collectionRepo,
		calculator:     calculator,
	}
}

// ApproveBatch validates inputs, selects the collector's eligible
// collections for the date, runs the variance calculator and persists the
// approvals. Finding nothing eligible is a successful no-op, which makes a
// re-run of an already approved batch safe: the second call approves zero
// and changes nothing.
func (s *BatchApprovalService) ApproveBatch(ctx context.Context, staffID, collectorID string, collectionDate time.Time, defaultReceivedLiters *float64) (*domain.BatchResult, error) {
	if staffID == "" || collectorID == "" || collectionDate.IsZero() {
		return nil, customError.WrapValidation("Staff ID, collector ID, and collection date are required")
	}
	if defaultReceivedLiters != nil && *defaultReceivedLiters < 0 {
		return nil, customError.WrapValidation("Default received liters cannot be negative")
	}

	collections, err := s.collectionRepo.GetPendingForApproval(ctx, collectorID, collectionDate)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	if len(collections) == 0 {
		return &domain.BatchResult{
			TotalPenaltyAmount: decimal.Zero,
			Message:            "No pending collections found for this collector and date",
		}, nil
	}

	drafts := s.calculator.ComputeBatch(collections, defaultReceivedLiters)

	now := time.Now()
	approvals := make([]*domain.CollectionApproval, 0, len(drafts))
	for _, draft := range drafts {
		approvals = append(approvals, &domain.CollectionApproval{
			ID:                 uuid.New(),
			CollectionID:       draft.CollectionID,
			CollectedLiters:    draft.CollectedLiters,
			ReceivedLiters:     draft.ReceivedLiters,
			VarianceType:       draft.VarianceType,
			VariancePercentage: draft.VariancePercentage,
			PenaltyAmount:      draft.PenaltyAmount,
			PenaltyStatus:      domain.PenaltyStatusPending,
			ApprovedBy:         staffID,
			ApprovedAt:         now,
		})
	}

	approvedIDs, err := s.collectionRepo.ApproveCollections(ctx, approvals)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	applied := make(map[string]bool, len(approvedIDs))
	for _, id := range approvedIDs {
		applied[id] = true
	}

	// Totals cover only the approvals this run actually applied; drafts
	// that lost the guarded flip to a concurrent run are excluded.
	result := &domain.BatchResult{
		ApprovedCount:      len(approvedIDs),
		TotalPenaltyAmount: decimal.Zero,
	}
	for _, draft := range drafts {
		if !applied[draft.CollectionID] {
			continue
		}
		result.TotalLitersCollected += draft.CollectedLiters
		result.TotalLitersReceived += draft.ReceivedLiters
		result.TotalVariance += draft.ReceivedLiters - draft.CollectedLiters
		result.TotalPenaltyAmount = result.TotalPenaltyAmount.Add(draft.PenaltyAmount)
	}
	result.Message = fmt.Sprintf(
		"Approved %d collections: %.2fL collected, %.2fL received, penalty %s",
		result.ApprovedCount, result.TotalLitersCollected, result.TotalLitersReceived,
		result.TotalPenaltyAmount.StringFixed(2),
	)

	return result, nil
}
