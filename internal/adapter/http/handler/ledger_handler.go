package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/ledgerclose/internal/adapter/http/dto"
	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	TrialBalance(ctx context.Context, tenantID string, asOf time.Time) (*usecase.TrialBalance, error)
}

// LedgerHandler handles ledger read requests.
type LedgerHandler struct {
	ledgerUC LedgerService
	now      func() time.Time
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC, now: time.Now}
}

// TrialBalance returns the trial balance as of as_of_date, or today.
func (h *LedgerHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	asOf := domain.DateOnly(h.now())
	if raw := r.URL.Query().Get("as_of_date"); raw != "" {
		parsed, err := domain.ParseDate(raw)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		asOf = parsed
	}

	tb, err := h.ledgerUC.TrialBalance(r.Context(), tenant, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrialBalanceFromResult(tb))
}
