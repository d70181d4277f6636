package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

// CreditRepository defines persistence for credit profiles and the
// append-only transaction log. Balance mutation methods are atomic: the
// conditional profile update and the transaction append commit together or
// not at all.
type CreditRepository interface {
	// GetProfile retrieves a farmer's credit profile
	GetProfile(ctx context.Context, farmerID string) (*domain.FarmerCreditProfile, error)

	// CreateProfile inserts a new credit profile
	CreateProfile(ctx context.Context, profile *domain.FarmerCreditProfile) error

	// ApplyDebit decreases the available balance and appends txn in one
	// atomic unit. The balance update is conditional on
	// current_credit_balance >= amount and is_frozen = false; when the
	// condition fails no rows change and applied is false. The append is
	// guarded by a unique index on the reference tuple: a debit that
	// duplicates an already-committed one is discarded entirely and the
	// committed original is returned as prior.
	ApplyDebit(ctx context.Context, farmerID string, amount decimal.Decimal, txn *domain.CreditTransaction) (applied bool, prior *domain.CreditTransaction, err error)

	// ApplyCredit increases the available balance, capped at
	// max_credit_amount, and appends txn with the actually-applied amount.
	ApplyCredit(ctx context.Context, farmerID string, amount decimal.Decimal, txn *domain.CreditTransaction) (applied bool, err error)

	// SetFrozen flips the freeze flag
	SetFrozen(ctx context.Context, farmerID string, frozen bool) error

	// AccruePendingDeductions adds amount to pending_deductions
	AccruePendingDeductions(ctx context.Context, farmerID string, amount decimal.Decimal) error

	// FindTransactionByReference looks up a prior debit carrying the same
	// reference and amount created after cutoff. Used for replay detection.
	FindTransactionByReference(ctx context.Context, farmerID string, ref domain.Reference, amount decimal.Decimal, cutoff time.Time) (*domain.CreditTransaction, error)

	// FindDebitForReference returns the most recent debit carrying ref,
	// regardless of amount or age. Used to recover the offset committed by
	// an interrupted settlement.
	FindDebitForReference(ctx context.Context, farmerID string, ref domain.Reference) (*domain.CreditTransaction, error)

	// GetTransaction retrieves one ledger entry by id
	GetTransaction(ctx context.Context, id string) (*domain.CreditTransaction, error)

	// ListTransactions returns the most recent ledger entries for a farmer
	ListTransactions(ctx context.Context, farmerID string, limit int) ([]*domain.CreditTransaction, error)

	// ListAllTransactions returns the full ledger for a farmer, oldest first
	ListAllTransactions(ctx context.Context, farmerID string) ([]*domain.CreditTransaction, error)
}

// CollectionRepository defines access to collections, their approvals and
// payment records.
type CollectionRepository interface {
	// GetByID retrieves a collection
	GetByID(ctx context.Context, collectionID string) (*domain.Collection, error)

	// GetPendingForApproval returns a collector's collections for one date
	// that are Collected and not yet approved for the company
	GetPendingForApproval(ctx context.Context, collectorID string, date time.Time) ([]*domain.Collection, error)

	// ApproveCollections inserts the approvals and flips
	// approved_for_company in one transaction. The flip is guarded by
	// approved_for_company = false; approvals whose guard fails are skipped.
	// Returns the collection ids actually approved.
	ApproveCollections(ctx context.Context, approvals []*domain.CollectionApproval) ([]string, error)

	// GetApprovedUnpaidByFarmer returns approved, not-yet-paid collections
	// ordered oldest collection date first
	GetApprovedUnpaidByFarmer(ctx context.Context, farmerID string) ([]*domain.Collection, error)

	// SettleCollection marks the collection Paid, writes the payment record
	// and flips any pending penalty to paid, all in one transaction. The
	// status update is guarded so an already-paid collection is a no-op;
	// returns false in that case.
	SettleCollection(ctx context.Context, collectionID string, payment *domain.CollectionPayment) (bool, error)

	// GetApprovalByCollection retrieves the approval for a collection
	GetApprovalByCollection(ctx context.Context, collectionID string) (*domain.CollectionApproval, error)
}

// DeductionRepository defines access to recurring deduction rows.
type DeductionRepository interface {
	// GetDue returns active deductions with next_apply_date on or before asOf
	GetDue(ctx context.Context, asOf time.Time) ([]*domain.RecurringDeduction, error)

	// AdvanceNextApplyDate moves next_apply_date from its current value to
	// next. Conditional on the stored date still equalling from, so a
	// concurrent run cannot advance twice; returns false when the guard fails.
	AdvanceNextApplyDate(ctx context.Context, deductionID string, from, next time.Time) (bool, error)
}
