package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/config"
	"github.com/maziwacoop/settlement-engine/internal/domain"
	"github.com/maziwacoop/settlement-engine/internal/repository"
	customError "github.com/maziwacoop/settlement-engine/pkg/errors"
)

// CreditLedger owns all mutation of farmer credit profiles. Every balance
// change funnels through Debit or Credit so the append-only transaction log
// is a faithful, replayable history of current_credit_balance.
type CreditLedger struct {
	creditRepo repository.CreditRepository
	redis      *redis.Client
	config     *config.Config
}

func NewCreditLedger(creditRepo repository.CreditRepository, redisClient *redis.Client, cfg *config.Config) *CreditLedger {
	return &CreditLedger{
		creditRepo: creditRepo,
		redis:      redisClient,
		config:     cfg,
	}
}

// GetProfile returns a farmer's credit profile.
func (l *CreditLedger) GetProfile(ctx context.Context, farmerID string) (*domain.FarmerCreditProfile, error) {
	if farmerID == "" {
		return nil, customError.WrapValidation("Farmer ID is required")
	}

	profile, err := l.creditRepo.GetProfile(ctx, farmerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapProfileNotFound(farmerID)
	}
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	return profile, nil
}

// EnsureProfile returns the farmer's profile, creating the default one if
// none exists. A freshly created profile is issued its full ceiling as
// opening credit so the ledger starts with exactly one credit_issued entry.
func (l *CreditLedger) EnsureProfile(ctx context.Context, farmerID, actor string) (*domain.FarmerCreditProfile, error) {
	profile, err := l.GetProfile(ctx, farmerID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, customError.ErrProfileNotFound) {
		return nil, err
	}

	now := time.Now()
	profile = &domain.FarmerCreditProfile{
		ID:                    uuid.New(),
		FarmerID:              farmerID,
		CreditLimitPercentage: l.config.GetDefaultCreditLimitPct(),
		MaxCreditAmount:       l.config.GetDefaultMaxCreditAmount(),
		CurrentCreditBalance:  decimal.Zero,
		TotalCreditUsed:       decimal.Zero,
		PendingDeductions:     decimal.Zero,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := l.creditRepo.CreateProfile(ctx, profile); err != nil {
		return nil, customError.WrapStoreError(err)
	}

	if _, err := l.Credit(ctx, farmerID, profile.MaxCreditAmount, domain.Reference{}, "Opening credit issuance", actor); err != nil {
		return nil, err
	}

	return l.GetProfile(ctx, farmerID)
}

// GetAvailable returns the farmer's spendable credit balance.
func (l *CreditLedger) GetAvailable(ctx context.Context, farmerID string) (decimal.Decimal, error) {
	profile, err := l.GetProfile(ctx, farmerID)
	if err != nil {
		return decimal.Zero, err
	}
	return profile.CurrentCreditBalance, nil
}

// Debit draws amount down from the farmer's available balance and appends a
// ledger transaction. Never clamps: a debit above the available balance
// fails with InsufficientCredit and partial offsetting is the caller's
// explicit responsibility.
//
// When ref is set, a prior debit carrying the same reference and amount
// inside the replay window is returned as-is instead of double-charging.
// The replay check here is only a fast path; the store's unique reference
// index is authoritative, so two concurrent runs of the same logical debit
// resolve to one committed transaction.
func (l *CreditLedger) Debit(ctx context.Context, farmerID string, amount decimal.Decimal, txType string, ref domain.Reference, description, actor string) (*domain.CreditTransaction, error) {
	if farmerID == "" {
		return nil, customError.WrapValidation("Farmer ID is required")
	}
	if !amount.IsPositive() {
		return nil, customError.WrapValidation("Debit amount must be greater than zero")
	}
	if txType != domain.TransactionCreditUsed && txType != domain.TransactionDeductionApplied {
		return nil, customError.WrapValidation(fmt.Sprintf("Invalid debit transaction type %q", txType))
	}

	profile, err := l.GetProfile(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	if profile.IsFrozen {
		return nil, customError.WrapProfileFrozen(farmerID)
	}

	if ref.Kind != "" {
		if original, err := l.findReplay(ctx, farmerID, ref, amount); err != nil {
			return nil, err
		} else if original != nil {
			return original, nil
		}
	}

	txn := &domain.CreditTransaction{
		ID:          uuid.New(),
		FarmerID:    farmerID,
		Type:        txType,
		Amount:      amount,
		Reference:   ref,
		Description: description,
		CreatedBy:   actor,
		CreatedAt:   time.Now(),
	}

	applied, prior, err := l.creditRepo.ApplyDebit(ctx, farmerID, amount, txn)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}
	if prior != nil {
		// A concurrent run of the same logical debit won the unique-index
		// race; its committed transaction is the outcome.
		return prior, nil
	}
	if !applied {
		// The conditional update saw either an insufficient balance or a
		// freeze that landed after our read.
		current, readErr := l.creditRepo.GetProfile(ctx, farmerID)
		if readErr == nil && current.IsFrozen {
			return nil, customError.WrapProfileFrozen(farmerID)
		}
		available := profile.CurrentCreditBalance
		if readErr == nil {
			available = current.CurrentCreditBalance
		}
		return nil, customError.WrapInsufficientCredit(farmerID, amount.StringFixed(2), available.StringFixed(2))
	}

	l.cacheReplayKey(ctx, farmerID, ref, amount, txn.ID.String())

	return txn, nil
}

// Credit replenishes the farmer's available balance, capped at the profile's
// max_credit_amount. Used for repayments and opening issuance; the recorded
// transaction amount is the delta actually applied after capping.
func (l *CreditLedger) Credit(ctx context.Context, farmerID string, amount decimal.Decimal, ref domain.Reference, description, actor string) (*domain.CreditTransaction, error) {
	if farmerID == "" {
		return nil, customError.WrapValidation("Farmer ID is required")
	}
	if !amount.IsPositive() {
		return nil, customError.WrapValidation("Credit amount must be greater than zero")
	}

	txType := domain.TransactionCreditRepaid
	if ref.Kind == "" {
		txType = domain.TransactionCreditIssued
	} else if ref.Kind == domain.ReferenceAdjustment {
		txType = domain.TransactionAdjustment
	}

	txn := &domain.CreditTransaction{
		ID:          uuid.New(),
		FarmerID:    farmerID,
		Type:        txType,
		Amount:      amount,
		Reference:   ref,
		Description: description,
		CreatedBy:   actor,
		CreatedAt:   time.Now(),
	}

	applied, err := l.creditRepo.ApplyCredit(ctx, farmerID, amount, txn)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}
	if !applied {
		return nil, customError.WrapProfileNotFound(farmerID)
	}

	return txn, nil
}

// Freeze blocks future debits for the farmer. Existing balance is untouched.
func (l *CreditLedger) Freeze(ctx context.Context, farmerID string) error {
	return l.setFrozen(ctx, farmerID, true)
}

// Unfreeze re-enables debits for the farmer.
func (l *CreditLedger) Unfreeze(ctx context.Context, farmerID string) error {
	return l.setFrozen(ctx, farmerID, false)
}

func (l *CreditLedger) setFrozen(ctx context.Context, farmerID string, frozen bool) error {
	if farmerID == "" {
		return customError.WrapValidation("Farmer ID is required")
	}

	err := l.creditRepo.SetFrozen(ctx, farmerID, frozen)
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapProfileNotFound(farmerID)
	}
	if err != nil {
		return customError.WrapStoreError(err)
	}

	return nil
}

// AccruePendingDeduction parks an amount that could not be debited so it is
// reserved against a future settlement instead of silently dropped.
func (l *CreditLedger) AccruePendingDeduction(ctx context.Context, farmerID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return customError.WrapValidation("Pending deduction amount must be greater than zero")
	}

	if err := l.creditRepo.AccruePendingDeductions(ctx, farmerID, amount); err != nil {
		return customError.WrapStoreError(err)
	}

	return nil
}

// PriorDebit returns the committed debit carrying ref, if any, regardless of
// amount. Settlement uses it to recover an offset whose follow-up write was
// interrupted.
func (l *CreditLedger) PriorDebit(ctx context.Context, farmerID string, ref domain.Reference) (*domain.CreditTransaction, error) {
	txn, err := l.creditRepo.FindDebitForReference(ctx, farmerID, ref)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}
	return txn, nil
}

// Transactions returns the farmer's most recent ledger entries.
func (l *CreditLedger) Transactions(ctx context.Context, farmerID string, limit int) ([]*domain.CreditTransaction, error) {
	if farmerID == "" {
		return nil, customError.WrapValidation("Farmer ID is required")
	}
	if limit <= 0 {
		limit = 50
	}

	txns, err := l.creditRepo.ListTransactions(ctx, farmerID, limit)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	return txns, nil
}

// ReplayBalance recomputes the balance by replaying the full transaction log
// from zero and compares it against the stored balance. Any divergence means
// a balance mutation bypassed the ledger.
func (l *CreditLedger) ReplayBalance(ctx context.Context, farmerID string) (*domain.LedgerAuditResponse, error) {
	profile, err := l.GetProfile(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	txns, err := l.creditRepo.ListAllTransactions(ctx, farmerID)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	replayed := decimal.Zero
	for _, txn := range txns {
		replayed = replayed.Add(txn.BalanceDelta())
	}

	return &domain.LedgerAuditResponse{
		FarmerID:        farmerID,
		StoredBalance:   profile.CurrentCreditBalance,
		ReplayedBalance: replayed,
		Consistent:      replayed.Equal(profile.CurrentCreditBalance),
	}, nil
}

// findReplay checks Redis first, then the authoritative store, for a prior
// debit with the same reference and amount inside the replay window.
func (l *CreditLedger) findReplay(ctx context.Context, farmerID string, ref domain.Reference, amount decimal.Decimal) (*domain.CreditTransaction, error) {
	if l.redis != nil {
		if txID, err := l.redis.Get(ctx, l.replayKey(farmerID, ref, amount)).Result(); err == nil && txID != "" {
			original, err := l.creditRepo.GetTransaction(ctx, txID)
			if err == nil {
				return original, nil
			}
			// Stale cache entry; fall through to the store lookup.
		}
	}

	cutoff := time.Now().Add(-l.config.GetDebitReplayWindow())
	original, err := l.creditRepo.FindTransactionByReference(ctx, farmerID, ref, amount, cutoff)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	return original, nil
}

func (l *CreditLedger) cacheReplayKey(ctx context.Context, farmerID string, ref domain.Reference, amount decimal.Decimal, txID string) {
	if l.redis == nil || ref.Kind == "" {
		return
	}

	// Best effort: a missed cache write only costs a store lookup on replay.
	l.redis.Set(ctx, l.replayKey(farmerID, ref, amount), txID, l.config.GetDebitReplayWindow())
}

func (l *CreditLedger) replayKey(farmerID string, ref domain.Reference, amount decimal.Decimal) string {
	return fmt.Sprintf("ledger:debit:%s:%s:%s:%s:%s", farmerID, ref.Kind, ref.ID, ref.Cycle, amount.StringFixed(2))
}
