package handler

import (
	"context"
	"net/http"

	"github.com/iho/ledgerclose/internal/adapter/http/dto"
	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// CloseService defines the behavior needed by CloseHandler.
type CloseService interface {
	Close(ctx context.Context, input usecase.CloseInput) (*usecase.CloseResult, error)
}

// CloseHandler handles year-end close requests.
type CloseHandler struct {
	closeUC  CloseService
	defaults domain.ReportingSettings
}

// NewCloseHandler creates a new CloseHandler.
func NewCloseHandler(closeUC CloseService, defaults domain.ReportingSettings) *CloseHandler {
	return &CloseHandler{closeUC: closeUC, defaults: defaults}
}

// Close closes a financial year.
func (h *CloseHandler) Close(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var req dto.CloseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(tenant, h.defaults)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.closeUC.Close(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CloseFromResult(result))
}
