package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collection statuses owned by the upstream collection workflow. This core
// only reads them and flips the approval / fee fields it owns.
const (
	CollectionStatusCollected = "Collected"
	CollectionStatusPaid      = "Paid"
)

// Fee (penalty) settlement states on an approval
const (
	PenaltyStatusPending = "pending"
	PenaltyStatusPaid    = "paid"
)

// Variance classification between collected and company-received liters
const (
	VariancePositive = "positive"
	VarianceNegative = "negative"
	VarianceNone     = "none"
)

// Collection is the read model of an externally-recorded milk collection.
type Collection struct {
	ID                 string          `json:"id" db:"id"`
	FarmerID           string          `json:"farmer_id" db:"farmer_id"`
	CollectorID        string          `json:"collector_id" db:"collector_id"`
	CollectionDate     time.Time       `json:"collection_date" db:"collection_date"`
	Liters             float64         `json:"liters" db:"liters"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status             string          `json:"status" db:"status"`
	ApprovedForCompany bool            `json:"approved_for_company" db:"approved_for_company"`
	FeeStatus          string          `json:"fee_status" db:"fee_status"`
}

// CollectionApproval records the variance and penalty outcome of approving
// one collection. Immutable after creation except the pending -> paid
// penalty status transition.
type CollectionApproval struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CollectionID       string          `json:"collection_id" db:"collection_id"`
	CollectedLiters    float64         `json:"collected_liters" db:"collected_liters"`
	ReceivedLiters     float64         `json:"received_liters" db:"received_liters"`
	VarianceType       string          `json:"variance_type" db:"variance_type"`
	VariancePercentage float64         `json:"variance_percentage" db:"variance_percentage"`
	PenaltyAmount      decimal.Decimal `json:"penalty_amount" db:"penalty_amount"`
	PenaltyStatus      string          `json:"penalty_status" db:"penalty_status"`
	ApprovedBy         string          `json:"approved_by" db:"approved_by"`
	ApprovedAt         time.Time       `json:"approved_at" db:"approved_at"`
}

// CollectionPayment is the payout record written when a collection settles.
type CollectionPayment struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	CollectionID string          `json:"collection_id" db:"collection_id"`
	GrossAmount  decimal.Decimal `json:"gross_amount" db:"gross_amount"`
	CreditOffset decimal.Decimal `json:"credit_offset" db:"credit_offset"`
	NetPayment   decimal.Decimal `json:"net_payment" db:"net_payment"`
	PaidAt       time.Time       `json:"paid_at" db:"paid_at"`
}

// DTOs for requests and responses

type BatchApprovalRequest struct {
	StaffID               string   `json:"staff_id" validate:"required"`
	CollectorID           string   `json:"collector_id" validate:"required"`
	CollectionDate        string   `json:"collection_date" validate:"required,datetime=2006-01-02"`
	DefaultReceivedLiters *float64 `json:"default_received_liters,omitempty"`
}

// BatchResult summarizes one batch approval run for staff reporting.
type BatchResult struct {
	ApprovedCount        int             `json:"approved_count"`
	TotalLitersCollected float64         `json:"total_liters_collected"`
	TotalLitersReceived  float64         `json:"total_liters_received"`
	TotalVariance        float64         `json:"total_variance"`
	TotalPenaltyAmount   decimal.Decimal `json:"total_penalty_amount"`
	Message              string          `json:"message"`
}

// CollectionSettlement is the per-collection outcome of a settlement run.
type CollectionSettlement struct {
	CollectionID string          `json:"collection_id"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	CreditUsed   decimal.Decimal `json:"credit_used"`
	NetPayment   decimal.Decimal `json:"net_payment"`
}

// SettlementResult aggregates a farmer-level settlement.
type SettlementResult struct {
	FarmerID        string                 `json:"farmer_id"`
	Collections     []CollectionSettlement `json:"collections"`
	TotalGross      decimal.Decimal        `json:"total_gross"`
	TotalCreditUsed decimal.Decimal        `json:"total_credit_used"`
	TotalNetPayment decimal.Decimal        `json:"total_net_payment"`
}
