package handler

import (
	"context"
	"net/http"

	"github.com/iho/ledgerclose/internal/adapter/http/dto"
	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// AllocationService defines the behavior needed by PaymentHandler.
type AllocationService interface {
	Allocate(ctx context.Context, payment domain.Payment) (*usecase.AllocationResult, error)
}

// PaymentHandler handles payment allocation requests.
type PaymentHandler struct {
	allocationUC AllocationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(allocationUC AllocationService) *PaymentHandler {
	return &PaymentHandler{allocationUC: allocationUC}
}

// Allocate records a payment and applies it to invoices and notes.
func (h *PaymentHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var req dto.AllocatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payment, err := req.ToDomain(tenant)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.allocationUC.Allocate(r.Context(), payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AllocationFromResult(result))
}
