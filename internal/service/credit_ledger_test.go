package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/maziwacoop/settlement-engine/internal/config"
	"github.com/maziwacoop/settlement-engine/internal/domain"
	customError "github.com/maziwacoop/settlement-engine/pkg/errors"
	"github.com/maziwacoop/settlement-engine/tests/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			PenaltyRatePerLiter:    "50.00",
			DefaultCreditLimitPct:  "70.00",
			DefaultMaxCreditAmount: "100000.00",
			DebitReplayWindow:      "48h",
		},
	}
}

func testProfile(farmerID string, balance int64) *domain.FarmerCreditProfile {
	return &domain.FarmerCreditProfile{
		ID:                    uuid.New(),
		FarmerID:              farmerID,
		CreditLimitPercentage: decimal.RequireFromString("70.00"),
		MaxCreditAmount:       decimal.NewFromInt(100000),
		CurrentCreditBalance:  decimal.NewFromInt(balance),
	}
}

func TestDebit_Success(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-1"
	ref := domain.PaymentRef("col-1")

	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(testProfile(farmerID, 800), nil)
	mockRepo.On("FindTransactionByReference", mock.Anything, farmerID, ref, decimal.NewFromInt(300), mock.Anything).Return(nil, nil)
	mockRepo.On("ApplyDebit", mock.Anything, farmerID, decimal.NewFromInt(300), mock.MatchedBy(func(txn *domain.CreditTransaction) bool {
		return txn.Type == domain.TransactionCreditUsed &&
			txn.Amount.Equal(decimal.NewFromInt(300)) &&
			txn.Reference == ref
	})).Return(true, nil, nil)

	txn, err := ledger.Debit(context.Background(), farmerID, decimal.NewFromInt(300),
		domain.TransactionCreditUsed, ref, "offset", "payment-netting")

	assert.NoError(t, err)
	assert.Equal(t, domain.TransactionCreditUsed, txn.Type)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "payment-netting", txn.CreatedBy)

	mockRepo.AssertExpectations(t)
}

func TestDebit_InsufficientCredit(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-1"
	ref := domain.PaymentRef("col-1")

	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(testProfile(farmerID, 100), nil)
	mockRepo.On("FindTransactionByReference", mock.Anything, farmerID, ref, decimal.NewFromInt(300), mock.Anything).Return(nil, nil)
	mockRepo.On("ApplyDebit", mock.Anything, farmerID, decimal.NewFromInt(300), mock.Anything).Return(false, nil, nil)

	txn, err := ledger.Debit(context.Background(), farmerID, decimal.NewFromInt(300),
		domain.TransactionCreditUsed, ref, "offset", "payment-netting")

	assert.Nil(t, txn)
	assert.True(t, errors.Is(err, customError.ErrInsufficientCredit))

	mockRepo.AssertExpectations(t)
}

func TestDebit_FrozenProfile(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-1"
	profile := testProfile(farmerID, 800)
	profile.IsFrozen = true

	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(profile, nil)

	txn, err := ledger.Debit(context.Background(), farmerID, decimal.NewFromInt(300),
		domain.TransactionCreditUsed, domain.PaymentRef("col-1"), "offset", "payment-netting")

	assert.Nil(t, txn)
	assert.True(t, errors.Is(err, customError.ErrProfileFrozen))

	mockRepo.AssertNotCalled(t, "ApplyDebit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDebit_ProfileNotFound(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	mockRepo.On("GetProfile", mock.Anything, "farmer-x").Return(nil, sql.ErrNoRows)

	txn, err := ledger.Debit(context.Background(), "farmer-x", decimal.NewFromInt(300),
		domain.TransactionCreditUsed, domain.PaymentRef("col-1"), "offset", "payment-netting")

	assert.Nil(t, txn)
	assert.True(t, errors.Is(err, customError.ErrProfileNotFound))
}

func TestDebit_RejectsInvalidInput(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	tests := []struct {
		name     string
		farmerID string
		amount   decimal.Decimal
		txType   string
	}{
		{name: "missing farmer id", farmerID: "", amount: decimal.NewFromInt(100), txType: domain.TransactionCreditUsed},
		{name: "zero amount", farmerID: "farmer-1", amount: decimal.Zero, txType: domain.TransactionCreditUsed},
		{name: "negative amount", farmerID: "farmer-1", amount: decimal.NewFromInt(-5), txType: domain.TransactionCreditUsed},
		{name: "credit type on debit path", farmerID: "farmer-1", amount: decimal.NewFromInt(100), txType: domain.TransactionCreditRepaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := ledger.Debit(context.Background(), tt.farmerID, tt.amount,
				tt.txType, domain.Reference{}, "", "tester")

			assert.Nil(t, txn)
			assert.True(t, customError.IsValidation(err))
		})
	}

	mockRepo.AssertNotCalled(t, "ApplyDebit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDebit_ReplayReturnsOriginal(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-1"
	ref := domain.DeductionRef("ded-1", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	original := &domain.CreditTransaction{
		ID:        uuid.New(),
		FarmerID:  farmerID,
		Type:      domain.TransactionDeductionApplied,
		Amount:    decimal.NewFromInt(100),
		Reference: ref,
	}

	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(testProfile(farmerID, 500), nil)
	mockRepo.On("FindTransactionByReference", mock.Anything, farmerID, ref, decimal.NewFromInt(100), mock.Anything).Return(original, nil)

	txn, err := ledger.Debit(context.Background(), farmerID, decimal.NewFromInt(100),
		domain.TransactionDeductionApplied, ref, "Recurring monthly deduction", "system-scheduler")

	assert.NoError(t, err)
	assert.Equal(t, original.ID, txn.ID)

	mockRepo.AssertNotCalled(t, "ApplyDebit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDebit_ConcurrentDuplicateReturnsCommittedOriginal(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-1"
	ref := domain.DeductionRef("ded-1", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	committed := &domain.CreditTransaction{
		ID:        uuid.New(),
		FarmerID:  farmerID,
		Type:      domain.TransactionDeductionApplied,
		Amount:    decimal.NewFromInt(100),
		Reference: ref,
	}

	// The replay check sees nothing committed yet, but by the time the
	// debit reaches the store a concurrent run of the same logical debit
	// has already landed on the unique reference index.
	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(testProfile(farmerID, 1000), nil)
	mockRepo.On("FindTransactionByReference", mock.Anything, farmerID, ref, decimal.NewFromInt(100), mock.Anything).Return(nil, nil)
	mockRepo.On("ApplyDebit", mock.Anything, farmerID, decimal.NewFromInt(100), mock.Anything).Return(false, committed, nil)

	txn, err := ledger.Debit(context.Background(), farmerID, decimal.NewFromInt(100),
		domain.TransactionDeductionApplied, ref, "Recurring monthly deduction", "system-scheduler")

	assert.NoError(t, err)
	assert.Equal(t, committed.ID, txn.ID)

	mockRepo.AssertExpectations(t)
}

func TestCredit_TypeDerivation(t *testing.T) {
	tests := []struct {
		name         string
		ref          domain.Reference
		expectedType string
	}{
		{name: "no reference is issuance", ref: domain.Reference{}, expectedType: domain.TransactionCreditIssued},
		{name: "payment reference is repayment", ref: domain.PaymentRef("col-1"), expectedType: domain.TransactionCreditRepaid},
		{name: "adjustment reference is adjustment", ref: domain.AdjustmentRef(uuid.NewString()), expectedType: domain.TransactionAdjustment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mocks.MockCreditRepository{}
			ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

			mockRepo.On("ApplyCredit", mock.Anything, "farmer-1", decimal.NewFromInt(200), mock.MatchedBy(func(txn *domain.CreditTransaction) bool {
				return txn.Type == tt.expectedType
			})).Return(true, nil)

			txn, err := ledger.Credit(context.Background(), "farmer-1", decimal.NewFromInt(200), tt.ref, "repayment", "staff-1")

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedType, txn.Type)

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestCredit_UnknownProfile(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	mockRepo.On("ApplyCredit", mock.Anything, "farmer-x", decimal.NewFromInt(200), mock.Anything).Return(false, nil)

	txn, err := ledger.Credit(context.Background(), "farmer-x", decimal.NewFromInt(200), domain.Reference{}, "", "staff-1")

	assert.Nil(t, txn)
	assert.True(t, errors.Is(err, customError.ErrProfileNotFound))
}

func TestEnsureProfile_CreatesWithOpeningIssuance(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-new"
	created := testProfile(farmerID, 100000)

	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(nil, sql.ErrNoRows).Once()
	mockRepo.On("CreateProfile", mock.Anything, mock.MatchedBy(func(p *domain.FarmerCreditProfile) bool {
		return p.FarmerID == farmerID &&
			p.MaxCreditAmount.Equal(decimal.NewFromInt(100000)) &&
			p.CurrentCreditBalance.IsZero()
	})).Return(nil)
	mockRepo.On("ApplyCredit", mock.Anything, farmerID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(100000))
	}), mock.MatchedBy(func(txn *domain.CreditTransaction) bool {
		return txn.Type == domain.TransactionCreditIssued
	})).Return(true, nil)
	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(created, nil)

	profile, err := ledger.EnsureProfile(context.Background(), farmerID, "staff-1")

	assert.NoError(t, err)
	assert.True(t, profile.CurrentCreditBalance.Equal(decimal.NewFromInt(100000)))

	mockRepo.AssertExpectations(t)
}

func TestEnsureProfile_ExistingProfileUntouched(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	farmerID := "farmer-1"
	mockRepo.On("GetProfile", mock.Anything, farmerID).Return(testProfile(farmerID, 420), nil)

	profile, err := ledger.EnsureProfile(context.Background(), farmerID, "staff-1")

	assert.NoError(t, err)
	assert.True(t, profile.CurrentCreditBalance.Equal(decimal.NewFromInt(420)))

	mockRepo.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
}

func TestFreeze_Unfreeze(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	mockRepo.On("SetFrozen", mock.Anything, "farmer-1", true).Return(nil)
	mockRepo.On("SetFrozen", mock.Anything, "farmer-1", false).Return(nil)
	mockRepo.On("SetFrozen", mock.Anything, "farmer-x", true).Return(sql.ErrNoRows)

	assert.NoError(t, ledger.Freeze(context.Background(), "farmer-1"))
	assert.NoError(t, ledger.Unfreeze(context.Background(), "farmer-1"))
	assert.True(t, errors.Is(ledger.Freeze(context.Background(), "farmer-x"), customError.ErrProfileNotFound))

	mockRepo.AssertExpectations(t)
}

func TestReplayBalance(t *testing.T) {
	farmerID := "farmer-1"
	history := []*domain.CreditTransaction{
		{Type: domain.TransactionCreditIssued, Amount: decimal.NewFromInt(1000)},
		{Type: domain.TransactionCreditUsed, Amount: decimal.NewFromInt(300)},
		{Type: domain.TransactionDeductionApplied, Amount: decimal.NewFromInt(200)},
		{Type: domain.TransactionCreditRepaid, Amount: decimal.NewFromInt(100)},
	}

	tests := []struct {
		name          string
		storedBalance int64
		consistent    bool
	}{
		{name: "stored balance matches replay", storedBalance: 600, consistent: true},
		{name: "divergence is flagged", storedBalance: 700, consistent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mocks.MockCreditRepository{}
			ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

			mockRepo.On("GetProfile", mock.Anything, farmerID).Return(testProfile(farmerID, tt.storedBalance), nil)
			mockRepo.On("ListAllTransactions", mock.Anything, farmerID).Return(history, nil)

			audit, err := ledger.ReplayBalance(context.Background(), farmerID)

			assert.NoError(t, err)
			assert.True(t, audit.ReplayedBalance.Equal(decimal.NewFromInt(600)),
				"Expected 600, but got %v", audit.ReplayedBalance)
			assert.Equal(t, tt.consistent, audit.Consistent)
		})
	}
}

func TestTransactions_DefaultLimit(t *testing.T) {
	mockRepo := &mocks.MockCreditRepository{}
	ledger := &CreditLedger{creditRepo: mockRepo, config: testConfig()}

	mockRepo.On("ListTransactions", mock.Anything, "farmer-1", 50).Return([]*domain.CreditTransaction{}, nil)

	txns, err := ledger.Transactions(context.Background(), "farmer-1", 0)

	assert.NoError(t, err)
	assert.Empty(t, txns)

	mockRepo.AssertExpectations(t)
}
