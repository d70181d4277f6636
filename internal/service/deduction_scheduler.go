package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/maziwacoop/settlement-engine/internal/domain"
	"github.com/maziwacoop/settlement-engine/internal/repository"
	customError "github.com/maziwacoop/settlement-engine/pkg/errors"
	"github.com/maziwacoop/settlement-engine/pkg/utils"
)

// RecurringDeductionScheduler applies due recurring deductions to farmer
// ledgers and advances their due dates.
type RecurringDeductionScheduler struct {
	deductionRepo repository.DeductionRepository
	ledger        *CreditLedger
}

func NewRecurringDeductionScheduler(deductionRepo repository.DeductionRepository, ledger *CreditLedger) *RecurringDeductionScheduler {
	return &RecurringDeductionScheduler{
		deductionRepo: deductionRepo,
		ledger:        ledger,
	}
}

// RunDue applies every active deduction whose next_apply_date is today or
// earlier. Each record is processed independently: one farmer's failure is
// collected into the report and never blocks the rest.
//
// The debit reference carries the deduction id plus its due date, so
// invoking RunDue twice on the same day replays the original transaction
// instead of double-charging, even if a previous run crashed between the
// debit and the date advance.
func (s *RecurringDeductionScheduler) RunDue(ctx context.Context, triggeredBy string) (*domain.RunReport, error) {
	if triggeredBy == "" {
		return nil, customError.WrapValidation("Triggered-by identifier is required")
	}

	today := utils.DateOnly(time.Now())
	due, err := s.deductionRepo.GetDue(ctx, today)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	report := &domain.RunReport{Errors: []domain.DeductionFailure{}}

	for _, deduction := range due {
		if err := s.applyOne(ctx, deduction, triggeredBy); err != nil {
			report.FailedCount++
			report.Errors = append(report.Errors, domain.DeductionFailure{
				DeductionID: deduction.ID.String(),
				FarmerID:    deduction.FarmerID,
				Reason:      err.Error(),
			})
			continue
		}
		report.AppliedCount++
	}

	return report, nil
}

func (s *RecurringDeductionScheduler) applyOne(ctx context.Context, deduction *domain.RecurringDeduction, triggeredBy string) error {
	dueDate := utils.DateOnly(deduction.NextApplyDate)
	ref := domain.DeductionRef(deduction.ID.String(), dueDate)
	description := fmt.Sprintf("Recurring %s deduction", deduction.Frequency)

	_, err := s.ledger.Debit(ctx, deduction.FarmerID, deduction.Amount,
		domain.TransactionDeductionApplied, ref, description, triggeredBy)
	if errors.Is(err, customError.ErrInsufficientCredit) {
		// Reserve the missed amount instead of dropping it.
		if accrueErr := s.ledger.AccruePendingDeduction(ctx, deduction.FarmerID, deduction.Amount); accrueErr != nil {
			log.Printf("Failed to accrue pending deduction %s: %v", deduction.ID, accrueErr)
		}
		return err
	}
	if err != nil {
		return err
	}

	next := utils.NextApplyDate(deduction.Frequency, dueDate)
	advanced, err := s.deductionRepo.AdvanceNextApplyDate(ctx, deduction.ID.String(), dueDate, next)
	if err != nil {
		// The debit committed; its replay key guards the next run against a
		// double charge while the date catches up.
		return customError.WrapStoreError(err)
	}
	if !advanced {
		log.Printf("Deduction %s date already advanced by a concurrent run", deduction.ID)
	}

	return nil
}
