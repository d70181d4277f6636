package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) GetProfile(ctx context.Context, farmerID string) (*domain.FarmerCreditProfile, error) {
	args := m.Called(ctx, farmerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FarmerCreditProfile), args.Error(1)
}

func (m *MockCreditRepository) CreateProfile(ctx context.Context, profile *domain.FarmerCreditProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockCreditRepository) ApplyDebit(ctx context.Context, farmerID string, amount decimal.Decimal, txn *domain.CreditTransaction) (bool, *domain.CreditTransaction, error) {
	args := m.Called(ctx, farmerID, amount, txn)
	var prior *domain.CreditTransaction
	if args.Get(1) != nil {
		prior = args.Get(1).(*domain.CreditTransaction)
	}
	return args.Bool(0), prior, args.Error(2)
}

func (m *MockCreditRepository) ApplyCredit(ctx context.Context, farmerID string, amount decimal.Decimal, txn *domain.CreditTransaction) (bool, error) {
	args := m.Called(ctx, farmerID, amount, txn)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditRepository) SetFrozen(ctx context.Context, farmerID string, frozen bool) error {
	args := m.Called(ctx, farmerID, frozen)
	return args.Error(0)
}

func (m *MockCreditRepository) AccruePendingDeductions(ctx context.Context, farmerID string, amount decimal.Decimal) error {
	args := m.Called(ctx, farmerID, amount)
	return args.Error(0)
}

func (m *MockCreditRepository) FindDebitForReference(ctx context.Context, farmerID string, ref domain.Reference) (*domain.CreditTransaction, error) {
	args := m.Called(ctx, farmerID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepository) FindTransactionByReference(ctx context.Context, farmerID string, ref domain.Reference, amount decimal.Decimal, cutoff time.Time) (*domain.CreditTransaction, error) {
	args := m.Called(ctx, farmerID, ref, amount, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepository) GetTransaction(ctx context.Context, id string) (*domain.CreditTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepository) ListTransactions(ctx context.Context, farmerID string, limit int) ([]*domain.CreditTransaction, error) {
	args := m.Called(ctx, farmerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepository) ListAllTransactions(ctx context.Context, farmerID string) ([]*domain.CreditTransaction, error) {
	args := m.Called(ctx, farmerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CreditTransaction), args.Error(1)
}

type MockCollectionRepository struct {
	mock.Mock
}

func (m *MockCollectionRepository) GetByID(ctx context.Context, collectionID string) (*domain.Collection, error) {
	args := m.Called(ctx, collectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Collection), args.Error(1)
}

func (m *MockCollectionRepository) GetPendingForApproval(ctx context.Context, collectorID string, date time.Time) ([]*domain.Collection, error) {
	args := m.Called(ctx, collectorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Collection), args.Error(1)
}

func (m *MockCollectionRepository) ApproveCollections(ctx context.Context, approvals []*domain.CollectionApproval) ([]string, error) {
	args := m.Called(ctx, approvals)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCollectionRepository) GetApprovedUnpaidByFarmer(ctx context.Context, farmerID string) ([]*domain.Collection, error) {
	args := m.Called(ctx, farmerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Collection), args.Error(1)
}

func (m *MockCollectionRepository) SettleCollection(ctx context.Context, collectionID string, payment *domain.CollectionPayment) (bool, error) {
	args := m.Called(ctx, collectionID, payment)
	return args.Bool(0), args.Error(1)
}

func (m *MockCollectionRepository) GetApprovalByCollection(ctx context.Context, collectionID string) (*domain.CollectionApproval, error) {
	args := m.Called(ctx, collectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollectionApproval), args.Error(1)
}

type MockDeductionRepository struct {
	mock.Mock
}

func (m *MockDeductionRepository) GetDue(ctx context.Context, asOf time.Time) ([]*domain.RecurringDeduction, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecurringDeduction), args.Error(1)
}

func (m *MockDeductionRepository) AdvanceNextApplyDate(ctx context.Context, deductionID string, from, next time.Time) (bool, error) {
	args := m.Called(ctx, deductionID, from, next)
	return args.Bool(0), args.Error(1)
}
