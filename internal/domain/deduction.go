package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recurring deduction frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// RecurringDeduction is a scheduled periodic charge against a farmer's
// credit balance. Staff own creation and editing; the scheduler only
// consumes rows and advances NextApplyDate.
type RecurringDeduction struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	FarmerID        string          `json:"farmer_id" db:"farmer_id"`
	DeductionTypeID string          `json:"deduction_type_id" db:"deduction_type_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Frequency       string          `json:"frequency" db:"frequency"`
	NextApplyDate   time.Time       `json:"next_apply_date" db:"next_apply_date"`
	Active          bool            `json:"active" db:"active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// DeductionFailure records one deduction that could not be applied during a
// scheduler run. Failures never abort the run.
type DeductionFailure struct {
	DeductionID string `json:"deduction_id"`
	FarmerID    string `json:"farmer_id"`
	Reason      string `json:"reason"`
}

// RunReport summarizes one RunDue invocation.
type RunReport struct {
	AppliedCount int                `json:"applied_count"`
	FailedCount  int                `json:"failed_count"`
	Errors       []DeductionFailure `json:"errors"`
}

type RunDueRequest struct {
	TriggeredBy string `json:"triggered_by" validate:"required"`
}
