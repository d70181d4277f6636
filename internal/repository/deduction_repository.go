package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

type deductionRepository struct {
	db *sqlx.DB
}

func NewDeductionRepository(db *sqlx.DB) DeductionRepository {
	return &deductionRepository{db: db}
}

func (r *deductionRepository) GetDue(ctx context.Context, asOf time.Time) ([]*domain.RecurringDeduction, error) {
	query := `
		SELECT id, farmer_id, deduction_type_id, amount, frequency,
		       next_apply_date, active, created_at, updated_at
		FROM recurring_deductions
		WHERE active = true
		  AND next_apply_date <= $1
		ORDER BY next_apply_date, id
	`

	var deductions []*domain.RecurringDeduction
	if err := r.db.SelectContext(ctx, &deductions, query, asOf); err != nil {
		return nil, err
	}

	return deductions, nil
}

func (r *deductionRepository) AdvanceNextApplyDate(ctx context.Context, deductionID string, from, next time.Time) (bool, error) {
	// Conditional on the stored date: if another run already advanced it,
	// zero rows match and the caller treats the advance as done.
	query := `
		UPDATE recurring_deductions
		SET next_apply_date = $3, updated_at = NOW()
		WHERE id = $1 AND next_apply_date = $2
	`

	result, err := r.db.ExecContext(ctx, query, deductionID, from, next)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
