package handler

import (
	"context"
	"net/http"

	"github.com/iho/ledgerclose/internal/adapter/http/dto"
	"github.com/iho/ledgerclose/internal/domain"
)

// ComparisonService defines the behavior needed by ComparisonHandler.
type ComparisonService interface {
	Compare(ctx context.Context, tenantID, currentID, previousID string) (*domain.ComparisonRecord, error)
}

// ComparisonHandler handles snapshot comparison requests.
type ComparisonHandler struct {
	comparisonUC ComparisonService
}

// NewComparisonHandler creates a new ComparisonHandler.
func NewComparisonHandler(comparisonUC ComparisonService) *ComparisonHandler {
	return &ComparisonHandler{comparisonUC: comparisonUC}
}

// Compare computes the deltas between two snapshots.
func (h *ComparisonHandler) Compare(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var req dto.CompareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentSnapshotID == "" || req.PreviousSnapshotID == "" {
		writeError(w, http.StatusBadRequest, "missing snapshot ID", "current_snapshot_id and previous_snapshot_id are required")
		return
	}

	record, err := h.comparisonUC.Compare(r.Context(), tenant, req.CurrentSnapshotID, req.PreviousSnapshotID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ComparisonFromDomain(record))
}
