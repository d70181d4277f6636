package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/domain"
)

type creditRepository struct {
	db *sqlx.DB
}

func NewCreditRepository(db *sqlx.DB) CreditRepository {
	return &creditRepository{db: db}
}

// creditTransactionRow flattens the reference union for sqlx scanning.
type creditTransactionRow struct {
	ID             string          `db:"id"`
	FarmerID       string          `db:"farmer_id"`
	Type           string          `db:"transaction_type"`
	Amount         decimal.Decimal `db:"amount"`
	BalanceAfter   decimal.Decimal `db:"balance_after"`
	ReferenceType  sql.NullString  `db:"reference_type"`
	ReferenceID    sql.NullString  `db:"reference_id"`
	ReferenceCycle sql.NullString  `db:"reference_cycle"`
	Description    string          `db:"description"`
	CreatedBy      string          `db:"created_by"`
	CreatedAt      time.Time       `db:"created_at"`
}

func (r creditTransactionRow) toDomain() (*domain.CreditTransaction, error) {
	txn := &domain.CreditTransaction{
		FarmerID:     r.FarmerID,
		Type:         r.Type,
		Amount:       r.Amount,
		BalanceAfter: r.BalanceAfter,
		Description:  r.Description,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
	}
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	txn.ID = id
	if r.ReferenceType.Valid {
		txn.Reference = domain.Reference{
			Kind:  domain.ReferenceKind(r.ReferenceType.String),
			ID:    r.ReferenceID.String,
			Cycle: r.ReferenceCycle.String,
		}
	}
	return txn, nil
}

func (r *creditRepository) GetProfile(ctx context.Context, farmerID string) (*domain.FarmerCreditProfile, error) {
	query := `
		SELECT id, farmer_id, credit_limit_percentage, max_credit_amount,
		       current_credit_balance, total_credit_used, pending_deductions,
		       is_frozen, created_at, updated_at
		FROM farmer_credit_profiles
		WHERE farmer_id = $1
	`

	var profile domain.FarmerCreditProfile
	if err := r.db.GetContext(ctx, &profile, query, farmerID); err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *creditRepository) CreateProfile(ctx context.Context, profile *domain.FarmerCreditProfile) error {
	query := `
		INSERT INTO farmer_credit_profiles
			(id, farmer_id, credit_limit_percentage, max_credit_amount,
			 current_credit_balance, total_credit_used, pending_deductions,
			 is_frozen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.FarmerID,
		profile.CreditLimitPercentage,
		profile.MaxCreditAmount,
		profile.CurrentCreditBalance,
		profile.TotalCreditUsed,
		profile.PendingDeductions,
		profile.IsFrozen,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	return err
}

func (r *creditRepository) ApplyDebit(ctx context.Context, farmerID string, amount decimal.Decimal, txn *domain.CreditTransaction) (bool, *domain.CreditTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, nil, err
	}
	defer tx.Rollback()

	// Single conditional statement: two concurrent debits can never both
	// pass the balance guard.
	update := `
		UPDATE farmer_credit_profiles
		SET current_credit_balance = current_credit_balance - $2,
		    total_credit_used = total_credit_used + $2,
		    updated_at = NOW()
		WHERE farmer_id = $1
		  AND is_frozen = false
		  AND current_credit_balance >= $2
		RETURNING current_credit_balance
	`

	var balanceAfter decimal.Decimal
	err = tx.GetContext(ctx, &balanceAfter, update, farmerID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}

	txn.BalanceAfter = balanceAfter

	// The unique reference index is the authoritative replay guard: a
	// concurrent duplicate of the same logical debit blocks here until the
	// winner commits, then inserts nothing.
	inserted, err := insertDebitTransaction(ctx, tx, txn)
	if err != nil {
		return false, nil, err
	}
	if !inserted {
		// Lost the dedup race. Discard our balance update and hand back the
		// committed original.
		tx.Rollback()
		prior, err := r.FindDebitForReference(ctx, farmerID, txn.Reference)
		if err != nil {
			return false, nil, err
		}
		return false, prior, nil
	}

	return true, nil, tx.Commit()
}

func (r *creditRepository) ApplyCredit(ctx context.Context, farmerID string, amount decimal.Decimal, txn *domain.CreditTransaction) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// Replenishment is capped at the ceiling. The row lock holds the balance
	// steady between the read and the update so the applied delta recorded
	// on the transaction is exact.
	before := `
		SELECT current_credit_balance FROM farmer_credit_profiles
		WHERE farmer_id = $1
		FOR UPDATE
	`

	var balanceBefore decimal.Decimal
	err = tx.GetContext(ctx, &balanceBefore, before, farmerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	update := `
		UPDATE farmer_credit_profiles
		SET current_credit_balance = LEAST(current_credit_balance + $2, max_credit_amount),
		    updated_at = NOW()
		WHERE farmer_id = $1
		RETURNING current_credit_balance
	`

	var balanceAfter decimal.Decimal
	if err := tx.GetContext(ctx, &balanceAfter, update, farmerID, amount); err != nil {
		return false, err
	}

	txn.Amount = balanceAfter.Sub(balanceBefore)
	txn.BalanceAfter = balanceAfter

	// Already at the ceiling: no balance movement, so no ledger entry.
	if txn.Amount.IsZero() {
		return true, nil
	}

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.CreditTransaction) error {
	_, err := execInsertTransaction(ctx, tx, txn, "")
	return err
}

// insertDebitTransaction reports false when the debit collides with the
// unique reference index, meaning the same logical charge already committed.
func insertDebitTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.CreditTransaction) (bool, error) {
	result, err := execInsertTransaction(ctx, tx, txn, " ON CONFLICT DO NOTHING")
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func execInsertTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.CreditTransaction, suffix string) (sql.Result, error) {
	query := `
		INSERT INTO credit_transactions
			(id, farmer_id, transaction_type, amount, balance_after,
			 reference_type, reference_id, reference_cycle,
			 description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	` + suffix

	var refType, refID, refCycle interface{}
	if txn.Reference.Kind != "" {
		refType = string(txn.Reference.Kind)
		refID = txn.Reference.ID
		if txn.Reference.Cycle != "" {
			refCycle = txn.Reference.Cycle
		}
	}

	return tx.ExecContext(ctx, query,
		txn.ID,
		txn.FarmerID,
		txn.Type,
		txn.Amount,
		txn.BalanceAfter,
		refType,
		refID,
		refCycle,
		txn.Description,
		txn.CreatedBy,
		txn.CreatedAt,
	)
}

func (r *creditRepository) SetFrozen(ctx context.Context, farmerID string, frozen bool) error {
	query := `
		UPDATE farmer_credit_profiles
		SET is_frozen = $2, updated_at = NOW()
		WHERE farmer_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, farmerID, frozen)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *creditRepository) AccruePendingDeductions(ctx context.Context, farmerID string, amount decimal.Decimal) error {
	query := `
		UPDATE farmer_credit_profiles
		SET pending_deductions = pending_deductions + $2, updated_at = NOW()
		WHERE farmer_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, farmerID, amount)
	return err
}

func (r *creditRepository) FindTransactionByReference(ctx context.Context, farmerID string, ref domain.Reference, amount decimal.Decimal, cutoff time.Time) (*domain.CreditTransaction, error) {
	query := `
		SELECT id, farmer_id, transaction_type, amount, balance_after,
		       reference_type, reference_id, reference_cycle,
		       description, created_by, created_at
		FROM credit_transactions
		WHERE farmer_id = $1
		  AND reference_type = $2
		  AND reference_id = $3
		  AND COALESCE(reference_cycle, '') = $4
		  AND amount = $5
		  AND created_at >= $6
		ORDER BY created_at
		LIMIT 1
	`

	var row creditTransactionRow
	err := r.db.GetContext(ctx, &row, query, farmerID, string(ref.Kind), ref.ID, ref.Cycle, amount, cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *creditRepository) FindDebitForReference(ctx context.Context, farmerID string, ref domain.Reference) (*domain.CreditTransaction, error) {
	query := `
		SELECT id, farmer_id, transaction_type, amount, balance_after,
		       reference_type, reference_id, reference_cycle,
		       description, created_by, created_at
		FROM credit_transactions
		WHERE farmer_id = $1
		  AND reference_type = $2
		  AND reference_id = $3
		  AND COALESCE(reference_cycle, '') = $4
		  AND transaction_type IN ($5, $6)
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row creditTransactionRow
	err := r.db.GetContext(ctx, &row, query, farmerID, string(ref.Kind), ref.ID, ref.Cycle,
		domain.TransactionCreditUsed, domain.TransactionDeductionApplied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *creditRepository) GetTransaction(ctx context.Context, id string) (*domain.CreditTransaction, error) {
	query := `
		SELECT id, farmer_id, transaction_type, amount, balance_after,
		       reference_type, reference_id, reference_cycle,
		       description, created_by, created_at
		FROM credit_transactions
		WHERE id = $1
	`

	var row creditTransactionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *creditRepository) ListTransactions(ctx context.Context, farmerID string, limit int) ([]*domain.CreditTransaction, error) {
	query := `
		SELECT id, farmer_id, transaction_type, amount, balance_after,
		       reference_type, reference_id, reference_cycle,
		       description, created_by, created_at
		FROM credit_transactions
		WHERE farmer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var rows []creditTransactionRow
	if err := r.db.SelectContext(ctx, &rows, query, farmerID, limit); err != nil {
		return nil, err
	}

	return rowsToDomain(rows)
}

func (r *creditRepository) ListAllTransactions(ctx context.Context, farmerID string) ([]*domain.CreditTransaction, error) {
	query := `
		SELECT id, farmer_id, transaction_type, amount, balance_after,
		       reference_type, reference_id, reference_cycle,
		       description, created_by, created_at
		FROM credit_transactions
		WHERE farmer_id = $1
		ORDER BY created_at
	`

	var rows []creditTransactionRow
	if err := r.db.SelectContext(ctx, &rows, query, farmerID); err != nil {
		return nil, err
	}

	return rowsToDomain(rows)
}

func rowsToDomain(rows []creditTransactionRow) ([]*domain.CreditTransaction, error) {
	txns := make([]*domain.CreditTransaction, 0, len(rows))
	for _, row := range rows {
		txn, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}
