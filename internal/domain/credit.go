package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types recorded on the credit ledger
const (
	TransactionCreditIssued     = "credit_issued"
	TransactionCreditUsed       = "credit_used"
	TransactionCreditRepaid     = "credit_repaid"
	TransactionDeductionApplied = "deduction_applied"
	TransactionAdjustment       = "adjustment"
)

// ReferenceKind is the closed set of entities a ledger transaction may point at.
type ReferenceKind string

const (
	ReferenceCollection ReferenceKind = "collection"
	ReferencePayment    ReferenceKind = "payment_deduction"
	ReferenceDeduction  ReferenceKind = "recurring_deduction"
	ReferenceAdjustment ReferenceKind = "adjustment"
)

// Reference ties a credit transaction to the record that justified it.
// Cycle is only set for recurring deductions: together with ID it forms the
// idempotency key, so re-applying the same deduction for the same due date
// is detected as a replay.
type Reference struct {
	Kind  ReferenceKind `json:"kind" db:"reference_type"`
	ID    string        `json:"id" db:"reference_id"`
	Cycle string        `json:"cycle,omitempty" db:"reference_cycle"`
}

func CollectionRef(collectionID string) Reference {
	return Reference{Kind: ReferenceCollection, ID: collectionID}
}

func PaymentRef(collectionID string) Reference {
	return Reference{Kind: ReferencePayment, ID: collectionID}
}

func DeductionRef(deductionID string, applyDate time.Time) Reference {
	return Reference{
		Kind:  ReferenceDeduction,
		ID:    deductionID,
		Cycle: applyDate.Format("2006-01-02"),
	}
}

func AdjustmentRef(transactionID string) Reference {
	return Reference{Kind: ReferenceAdjustment, ID: transactionID}
}

// FarmerCreditProfile represents a farmer's revolving credit position.
// CurrentCreditBalance is the amount still available to spend; it only moves
// through the CreditLedger debit/credit operations.
type FarmerCreditProfile struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	FarmerID              string          `json:"farmer_id" db:"farmer_id"`
	CreditLimitPercentage decimal.Decimal `json:"credit_limit_percentage" db:"credit_limit_percentage"`
	MaxCreditAmount       decimal.Decimal `json:"max_credit_amount" db:"max_credit_amount"`
	CurrentCreditBalance  decimal.Decimal `json:"current_credit_balance" db:"current_credit_balance"`
	TotalCreditUsed       decimal.Decimal `json:"total_credit_used" db:"total_credit_used"`
	PendingDeductions     decimal.Decimal `json:"pending_deductions" db:"pending_deductions"`
	IsFrozen              bool            `json:"is_frozen" db:"is_frozen"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// CreditTransaction is one immutable ledger entry. BalanceAfter snapshots the
// profile balance immediately after the entry so the log can be replayed and
// audited without recomputation.
type CreditTransaction struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	FarmerID     string          `json:"farmer_id" db:"farmer_id"`
	Type         string          `json:"type" db:"transaction_type"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	Reference    Reference       `json:"reference"`
	Description  string          `json:"description" db:"description"`
	CreatedBy    string          `json:"created_by" db:"created_by"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// IsDebit reports whether the transaction decreases the available balance.
func (t *CreditTransaction) IsDebit() bool {
	return t.Type == TransactionCreditUsed || t.Type == TransactionDeductionApplied
}

// BalanceDelta is the signed effect of the transaction on the available balance.
func (t *CreditTransaction) BalanceDelta() decimal.Decimal {
	if t.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// DTOs for requests and responses

type FreezeRequest struct {
	Reason  string `json:"reason"`
	ActedBy string `json:"acted_by" validate:"required"`
}

type LedgerAuditResponse struct {
	FarmerID        string          `json:"farmer_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	Consistent      bool            `json:"consistent"`
}
