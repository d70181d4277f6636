package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maziwacoop/settlement-engine/internal/domain"
	"github.com/maziwacoop/settlement-engine/internal/repository"
	customError "github.com/maziwacoop/settlement-engine/pkg/errors"
	"github.com/maziwacoop/settlement-engine/pkg/utils"
)

// PaymentNettingService offsets a farmer's approved collection earnings
// against their outstanding credit before disbursement.
//
// A payment rolled back from paid to pending does NOT reverse the credit
// debit here; reversal is an explicit compensating Credit carrying an
// adjustment reference to the original transaction.
type PaymentNettingService struct {
	collectionRepo repository.CollectionRepository
	ledger         *CreditLedger
}

func NewPaymentNettingService(collectionRepo repository.CollectionRepository, ledger *CreditLedger) *PaymentNettingService {
	return &PaymentNettingService{
		collectionRepo: collectionRepo,
		ledger:         ledger,
	}
}

// Settle nets all of a farmer's approved, unpaid collections against their
// available credit. Collections are processed oldest collection date first
// and the balance is drawn down sequentially; once it hits zero the
// remaining collections settle with a zero offset.
func (s *PaymentNettingService) Settle(ctx context.Context, farmerID string) (*domain.SettlementResult, error) {
	if farmerID == "" {
		return nil, customError.WrapValidation("Farmer ID is required")
	}

	collections, err := s.collectionRepo.GetApprovedUnpaidByFarmer(ctx, farmerID)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	result := &domain.SettlementResult{
		FarmerID:        farmerID,
		Collections:     make([]domain.CollectionSettlement, 0, len(collections)),
		TotalGross:      decimal.Zero,
		TotalCreditUsed: decimal.Zero,
		TotalNetPayment: decimal.Zero,
	}

	for _, collection := range collections {
		settlement, err := s.settleOne(ctx, collection)
		if err != nil {
			return nil, err
		}
		if settlement == nil {
			// Already paid by a concurrent settlement run.
			continue
		}

		result.Collections = append(result.Collections, *settlement)
		result.TotalGross = result.TotalGross.Add(settlement.GrossAmount)
		result.TotalCreditUsed = result.TotalCreditUsed.Add(settlement.CreditUsed)
		result.TotalNetPayment = result.TotalNetPayment.Add(settlement.NetPayment)
	}

	return result, nil
}

// SettleCollection settles a single collection for the farmer.
func (s *PaymentNettingService) SettleCollection(ctx context.Context, collectionID, farmerID string) (*domain.SettlementResult, error) {
	if collectionID == "" || farmerID == "" {
		return nil, customError.WrapValidation("Collection ID and farmer ID are required")
	}

	collection, err := s.collectionRepo.GetByID(ctx, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapCollectionNotFound(collectionID)
	}
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}

	if collection.FarmerID != farmerID {
		return nil, customError.WrapValidation(fmt.Sprintf("Collection %s does not belong to farmer %s", collectionID, farmerID))
	}
	if !collection.ApprovedForCompany {
		return nil, customError.WrapValidation(fmt.Sprintf("Collection %s is not approved for settlement", collectionID))
	}

	result := &domain.SettlementResult{
		FarmerID:        farmerID,
		Collections:     []domain.CollectionSettlement{},
		TotalGross:      decimal.Zero,
		TotalCreditUsed: decimal.Zero,
		TotalNetPayment: decimal.Zero,
	}

	settlement, err := s.settleOne(ctx, collection)
	if err != nil {
		return nil, err
	}
	if settlement != nil {
		result.Collections = append(result.Collections, *settlement)
		result.TotalGross = settlement.GrossAmount
		result.TotalCreditUsed = settlement.CreditUsed
		result.TotalNetPayment = settlement.NetPayment
	}

	return result, nil
}

// settleOne offsets one collection against available credit and marks it
// paid. Returns nil when the collection turned out to be paid already.
func (s *PaymentNettingService) settleOne(ctx context.Context, collection *domain.Collection) (*domain.CollectionSettlement, error) {
	amount := collection.TotalAmount
	offset, err := s.offsetCredit(ctx, collection, amount)
	if err != nil {
		return nil, err
	}

	netPayment := utils.RoundMoney(amount.Sub(offset))
	payment := &domain.CollectionPayment{
		ID:           uuid.New(),
		CollectionID: collection.ID,
		GrossAmount:  amount,
		CreditOffset: offset,
		NetPayment:   netPayment,
		PaidAt:       time.Now(),
	}

	settled, err := s.collectionRepo.SettleCollection(ctx, collection.ID, payment)
	if err != nil {
		return nil, customError.WrapStoreError(err)
	}
	if !settled {
		return nil, nil
	}

	return &domain.CollectionSettlement{
		CollectionID: collection.ID,
		GrossAmount:  amount,
		CreditUsed:   offset,
		NetPayment:   netPayment,
	}, nil
}

// offsetCredit debits min(available, amount) from the farmer's balance.
// The ledger never clamps, so the partial offset is computed here; if the
// balance moves between the read and the debit, the offset is recomputed
// once before settling with no offset at all.
//
// A debit committed by an earlier interrupted settlement of this collection
// is reused as the offset, so the retry cannot strand it against a full
// netPayment.
func (s *PaymentNettingService) offsetCredit(ctx context.Context, collection *domain.Collection, amount decimal.Decimal) (decimal.Decimal, error) {
	ref := domain.PaymentRef(collection.ID)

	prior, err := s.ledger.PriorDebit(ctx, collection.FarmerID, ref)
	if err != nil {
		return decimal.Zero, err
	}
	if prior != nil {
		return prior.Amount, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		available, err := s.ledger.GetAvailable(ctx, collection.FarmerID)
		if errors.Is(err, customError.ErrProfileNotFound) {
			// Farmer never drew credit; nothing to offset.
			return decimal.Zero, nil
		}
		if err != nil {
			return decimal.Zero, err
		}

		offset := utils.MinDecimal(available, amount)
		if !offset.IsPositive() {
			return decimal.Zero, nil
		}

		_, err = s.ledger.Debit(ctx, collection.FarmerID, offset,
			domain.TransactionCreditUsed,
			ref,
			fmt.Sprintf("Credit offset against collection %s payout", collection.ID),
			"payment-netting",
		)
		if err == nil {
			return offset, nil
		}
		if errors.Is(err, customError.ErrInsufficientCredit) {
			continue
		}
		if errors.Is(err, customError.ErrProfileFrozen) {
			// Frozen profiles still get paid, just without an offset.
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return decimal.Zero, nil
}
