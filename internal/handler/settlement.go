package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/maziwacoop/settlement-engine/internal/domain"
	"github.com/maziwacoop/settlement-engine/internal/service"
	"github.com/maziwacoop/settlement-engine/pkg/response"
)

// SettlementHandler exposes the ledger, approval, netting and scheduler
// operations to staff-facing and scheduling callers.
type SettlementHandler struct {
	ledger    *service.CreditLedger
	approval  *service.BatchApprovalService
	netting   *service.PaymentNettingService
	scheduler *service.RecurringDeductionScheduler
	validator *validator.Validate
}

func NewSettlementHandler(
	ledger *service.CreditLedger,
	approval *service.BatchApprovalService,
	netting *service.PaymentNettingService,
	scheduler *service.RecurringDeductionScheduler,
) *SettlementHandler {
	return &SettlementHandler{
		ledger:    ledger,
		approval:  approval,
		netting:   netting,
		scheduler: scheduler,
		validator: validator.New(),
	}
}

// ApproveBatch handles POST /api/v1/approvals/batch
func (h *SettlementHandler) ApproveBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Staff ID, collector ID, and collection date are required", err)
		return
	}

	collectionDate, err := time.Parse("2006-01-02", req.CollectionDate)
	if err != nil {
		response.BadRequest(w, "Collection date must be formatted YYYY-MM-DD", err)
		return
	}

	result, err := h.approval.ApproveBatch(r.Context(), req.StaffID, req.CollectorID, collectionDate, req.DefaultReceivedLiters)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// Settle handles POST /api/v1/farmers/{farmerId}/settlement
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	farmerID := mux.Vars(r)["farmerId"]

	result, err := h.netting.Settle(r.Context(), farmerID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// SettleCollection handles POST /api/v1/collections/{collectionId}/settlement
func (h *SettlementHandler) SettleCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := mux.Vars(r)["collectionId"]
	farmerID := r.URL.Query().Get("farmerId")

	result, err := h.netting.SettleCollection(r.Context(), collectionID, farmerID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// RunDeductions handles POST /api/v1/deductions/run
func (h *SettlementHandler) RunDeductions(w http.ResponseWriter, r *http.Request) {
	var req domain.RunDueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Triggered-by identifier is required", err)
		return
	}

	report, err := h.scheduler.RunDue(r.Context(), req.TriggeredBy)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, report)
}

// GetCreditProfile handles GET /api/v1/farmers/{farmerId}/credit. A farmer
// seen for the first time gets a default profile created on fetch.
func (h *SettlementHandler) GetCreditProfile(w http.ResponseWriter, r *http.Request) {
	farmerID := mux.Vars(r)["farmerId"]

	profile, err := h.ledger.EnsureProfile(r.Context(), farmerID, "credit-api")
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, profile)
}

// GetCreditTransactions handles GET /api/v1/farmers/{farmerId}/credit/transactions
func (h *SettlementHandler) GetCreditTransactions(w http.ResponseWriter, r *http.Request) {
	farmerID := mux.Vars(r)["farmerId"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, "Limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	txns, err := h.ledger.Transactions(r.Context(), farmerID, limit)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, txns)
}

// AuditLedger handles GET /api/v1/farmers/{farmerId}/credit/audit
func (h *SettlementHandler) AuditLedger(w http.ResponseWriter, r *http.Request) {
	farmerID := mux.Vars(r)["farmerId"]

	audit, err := h.ledger.ReplayBalance(r.Context(), farmerID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, audit)
}

// Freeze handles POST /api/v1/farmers/{farmerId}/credit/freeze
func (h *SettlementHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, true)
}

// Unfreeze handles POST /api/v1/farmers/{farmerId}/credit/unfreeze
func (h *SettlementHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, false)
}

func (h *SettlementHandler) setFrozen(w http.ResponseWriter, r *http.Request, frozen bool) {
	farmerID := mux.Vars(r)["farmerId"]

	var err error
	if frozen {
		err = h.ledger.Freeze(r.Context(), farmerID)
	} else {
		err = h.ledger.Unfreeze(r.Context(), farmerID)
	}
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, map[string]bool{"is_frozen": frozen})
}
