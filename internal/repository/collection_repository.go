package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

type collectionRepository struct {
	db *sqlx.DB
}

func NewCollectionRepository(db *sqlx.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) GetByID(ctx context.Context, collectionID string) (*domain.Collection, error) {
	query := `
		SELECT id, farmer_id, collector_id, collection_date, liters,
		       total_amount, status, approved_for_company, fee_status
		FROM collections
		WHERE id = $1
	`

	var collection domain.Collection
	if err := r.db.GetContext(ctx, &collection, query, collectionID); err != nil {
		return nil, err
	}

	return &collection, nil
}

func (r *collectionRepository) GetPendingForApproval(ctx context.Context, collectorID string, date time.Time) ([]*domain.Collection, error) {
	query := `
		SELECT id, farmer_id, collector_id, collection_date, liters,
		       total_amount, status, approved_for_company, fee_status
		FROM collections
		WHERE collector_id = $1
		  AND collection_date = $2
		  AND status = $3
		  AND approved_for_company = false
		ORDER BY id
	`

	var collections []*domain.Collection
	err := r.db.SelectContext(ctx, &collections, query, collectorID, date, domain.CollectionStatusCollected)
	if err != nil {
		return nil, err
	}

	return collections, nil
}

func (r *collectionRepository) ApproveCollections(ctx context.Context, approvals []*domain.CollectionApproval) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The flip carries the eligibility guard so a concurrent batch run
	// cannot approve the same collection twice.
	flip := `
		UPDATE collections
		SET approved_for_company = true, updated_at = NOW()
		WHERE id = $1 AND approved_for_company = false
	`

	insert := `
		INSERT INTO collection_approvals
			(id, collection_id, collected_liters, received_liters,
			 variance_type, variance_percentage, penalty_amount,
			 penalty_status, approved_by, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	approved := make([]string, 0, len(approvals))
	for _, approval := range approvals {
		result, err := tx.ExecContext(ctx, flip, approval.CollectionID)
		if err != nil {
			return nil, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			// Lost the race to another batch run; skip without an approval row.
			continue
		}

		_, err = tx.ExecContext(ctx, insert,
			approval.ID,
			approval.CollectionID,
			approval.CollectedLiters,
			approval.ReceivedLiters,
			approval.VarianceType,
			approval.VariancePercentage,
			approval.PenaltyAmount,
			approval.PenaltyStatus,
			approval.ApprovedBy,
			approval.ApprovedAt,
		)
		if err != nil {
			return nil, err
		}

		approved = append(approved, approval.CollectionID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return approved, nil
}

func (r *collectionRepository) GetApprovedUnpaidByFarmer(ctx context.Context, farmerID string) ([]*domain.Collection, error) {
	query := `
		SELECT id, farmer_id, collector_id, collection_date, liters,
		       total_amount, status, approved_for_company, fee_status
		FROM collections
		WHERE farmer_id = $1
		  AND approved_for_company = true
		  AND status != $2
		ORDER BY collection_date, id
	`

	var collections []*domain.Collection
	err := r.db.SelectContext(ctx, &collections, query, farmerID, domain.CollectionStatusPaid)
	if err != nil {
		return nil, err
	}

	return collections, nil
}

func (r *collectionRepository) SettleCollection(ctx context.Context, collectionID string, payment *domain.CollectionPayment) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	markPaid := `
		UPDATE collections
		SET status = $2, fee_status = $3, updated_at = NOW()
		WHERE id = $1 AND status != $2
	`

	result, err := tx.ExecContext(ctx, markPaid, collectionID, domain.CollectionStatusPaid, domain.PenaltyStatusPaid)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	insertPayment := `
		INSERT INTO collection_payments
			(id, collection_id, gross_amount, credit_offset, net_payment, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.ExecContext(ctx, insertPayment,
		payment.ID,
		payment.CollectionID,
		payment.GrossAmount,
		payment.CreditOffset,
		payment.NetPayment,
		payment.PaidAt,
	)
	if err != nil {
		return false, err
	}

	// Any penalty rides the collection fee: once the fee settles, the
	// approval's penalty flips to paid too.
	flipPenalty := `
		UPDATE collection_approvals
		SET penalty_status = $2
		WHERE collection_id = $1 AND penalty_status = $3
	`

	_, err = tx.ExecContext(ctx, flipPenalty, collectionID, domain.PenaltyStatusPaid, domain.PenaltyStatusPending)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *collectionRepository) GetApprovalByCollection(ctx context.Context, collectionID string) (*domain.CollectionApproval, error) {
	query := `
		SELECT id, collection_id, collected_liters, received_liters,
		       variance_type, variance_percentage, penalty_amount,
		       penalty_status, approved_by, approved_at
		FROM collection_approvals
		WHERE collection_id = $1
	`

	var approval domain.CollectionApproval
	err := r.db.GetContext(ctx, &approval, query, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &approval, nil
}
