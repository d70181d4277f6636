package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/maziwacoop/settlement-engine/internal/domain"
	customError "github.com/maziwacoop/settlement-engine/pkg/errors"
	"github.com/maziwacoop/settlement-engine/tests/mocks"
)

func newBatchApprovalService(collectionRepo *mocks.MockCollectionRepository) *BatchApprovalService {
	return &BatchApprovalService{
		collectionRepo: collectionRepo,
		calculator:     NewVarianceCalculator(decimal.NewFromInt(50)),
	}
}

func TestApproveBatch_Success(t *testing.T) {
	mockRepo := &mocks.MockCollectionRepository{}
	service := newBatchApprovalService(mockRepo)

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	collections := []*domain.Collection{
		{ID: "col-1", FarmerID: "farmer-1", CollectorID: "collector-1", Liters: 100, Status: domain.CollectionStatusCollected},
	}
	received := 95.0

	mockRepo.On("GetPendingForApproval", mock.Anything, "collector-1", date).Return(collections, nil)
	mockRepo.On("ApproveCollections", mock.Anything, mock.MatchedBy(func(approvals []*domain.CollectionApproval) bool {
		if len(approvals) != 1 {
			return false
		}
		a := approvals[0]
		return a.CollectionID == "col-1" &&
			a.VarianceType == domain.VarianceNegative &&
			a.PenaltyAmount.Equal(decimal.NewFromInt(250)) &&
			a.PenaltyStatus == domain.PenaltyStatusPending &&
			a.ApprovedBy == "staff-1"
	})).Return([]string{"col-1"}, nil)

	result, err := service.ApproveBatch(context.Background(), "staff-1", "collector-1", date, &received)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ApprovedCount)
	assert.InDelta(t, 100, result.TotalLitersCollected, 1e-9)
	assert.InDelta(t, 95, result.TotalLitersReceived, 1e-9)
	assert.InDelta(t, -5, result.TotalVariance, 1e-9)
	assert.True(t, result.TotalPenaltyAmount.Equal(decimal.NewFromInt(250)),
		"Expected 250, but got %v", result.TotalPenaltyAmount)

	mockRepo.AssertExpectations(t)
}

func TestApproveBatch_NoReceivedReadingApprovesAtRecordedLiters(t *testing.T) {
	mockRepo := &mocks.MockCollectionRepository{}
	service := newBatchApprovalService(mockRepo)

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	collections := []*domain.Collection{
		{ID: "col-1", CollectorID: "collector-1", Liters: 30, Status: domain.CollectionStatusCollected},
		{ID: "col-2", CollectorID: "collector-1", Liters: 20, Status: domain.CollectionStatusCollected},
	}

	mockRepo.On("GetPendingForApproval", mock.Anything, "collector-1", date).Return(collections, nil)
	mockRepo.On("ApproveCollections", mock.Anything, mock.MatchedBy(func(approvals []*domain.CollectionApproval) bool {
		for _, a := range approvals {
			if a.VarianceType != domain.VarianceNone || !a.PenaltyAmount.IsZero() {
				return false
			}
		}
		return len(approvals) == 2
	})).Return([]string{"col-1", "col-2"}, nil)

	result, err := service.ApproveBatch(context.Background(), "staff-1", "collector-1", date, nil)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.ApprovedCount)
	assert.True(t, result.TotalPenaltyAmount.IsZero())

	mockRepo.AssertExpectations(t)
}

func TestApproveBatch_NothingEligibleIsNoOp(t *testing.T) {
	mockRepo := &mocks.MockCollectionRepository{}
	service := newBatchApprovalService(mockRepo)

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	mockRepo.On("GetPendingForApproval", mock.Anything, "collector-1", date).Return([]*domain.Collection{}, nil)

	result, err := service.ApproveBatch(context.Background(), "staff-1", "collector-1", date, nil)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.ApprovedCount)
	assert.Equal(t, "No pending collections found for this collector and date", result.Message)

	mockRepo.AssertNotCalled(t, "ApproveCollections", mock.Anything, mock.Anything)
}

func TestApproveBatch_RaceLosesGuardedFlip(t *testing.T) {
	mockRepo := &mocks.MockCollectionRepository{}
	service := newBatchApprovalService(mockRepo)

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	collections := []*domain.Collection{
		{ID: "col-1", CollectorID: "collector-1", Liters: 100, Status: domain.CollectionStatusCollected},
	}

	mockRepo.On("GetPendingForApproval", mock.Anything, "collector-1", date).Return(collections, nil)
	// A concurrent run approved the collection between the read and the flip.
	mockRepo.On("ApproveCollections", mock.Anything, mock.Anything).Return([]string{}, nil)

	result, err := service.ApproveBatch(context.Background(), "staff-1", "collector-1", date, nil)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.ApprovedCount)
}

func TestApproveBatch_TotalsCoverOnlyAppliedApprovals(t *testing.T) {
	mockRepo := &mocks.MockCollectionRepository{}
	service := newBatchApprovalService(mockRepo)

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	collections := []*domain.Collection{
		{ID: "col-1", CollectorID: "collector-1", Liters: 100, Status: domain.CollectionStatusCollected},
		{ID: "col-2", CollectorID: "collector-1", Liters: 100, Status: domain.CollectionStatusCollected},
	}
	received := 190.0

	mockRepo.On("GetPendingForApproval", mock.Anything, "collector-1", date).Return(collections, nil)
	// col-2 lost the guarded flip to a concurrent run, so only col-1's
	// liters and penalty count toward this run's totals.
	mockRepo.On("ApproveCollections", mock.Anything, mock.Anything).Return([]string{"col-1"}, nil)

	result, err := service.ApproveBatch(context.Background(), "staff-1", "collector-1", date, &received)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ApprovedCount)
	assert.InDelta(t, 100, result.TotalLitersCollected, 1e-9)
	assert.InDelta(t, 95, result.TotalLitersReceived, 1e-9)
	assert.InDelta(t, -5, result.TotalVariance, 1e-9)
	assert.True(t, result.TotalPenaltyAmount.Equal(decimal.NewFromInt(250)),
		"Expected 250, but got %v", result.TotalPenaltyAmount)

	mockRepo.AssertExpectations(t)
}

func TestApproveBatch_Validation(t *testing.T) {
	mockRepo := &mocks.MockCollectionRepository{}
	service := newBatchApprovalService(mockRepo)

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	negative := -1.0

	tests := []struct {
		name            string
		staffID         string
		collectorID     string
		date            time.Time
		defaultReceived *float64
		expectedMessage string
	}{
		{
			name:            "missing staff id",
			collectorID:     "collector-1",
			date:            date,
			expectedMessage: "Staff ID, collector ID, and collection date are required",
		},
		{
			name:            "missing collector id",
			staffID:         "staff-1",
			date:            date,
			expectedMessage: "Staff ID, collector ID, and collection date are required",
		},
		{
			name:            "zero date",
			staffID:         "staff-1",
			collectorID:     "collector-1",
			expectedMessage: "Staff ID, collector ID, and collection date are required",
		},
		{
			name:            "negative received liters",
			staffID:         "staff-1",
			collectorID:     "collector-1",
			date:            date,
			defaultReceived: &negative,
			expectedMessage: "Default received liters cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.ApproveBatch(context.Background(), tt.staffID, tt.collectorID, tt.date, tt.defaultReceived)

			assert.Nil(t, result)
			assert.True(t, customError.IsValidation(err))

			var businessErr *customError.BusinessError
			assert.ErrorAs(t, err, &businessErr)
			assert.Equal(t, tt.expectedMessage, businessErr.Message)
		})
	}

	mockRepo.AssertNotCalled(t, "GetPendingForApproval", mock.Anything, mock.Anything, mock.Anything)
}
