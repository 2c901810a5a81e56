package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerclose/internal/adapter/http/dto"
	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// SnapshotService defines the behavior needed by SnapshotHandler.
type SnapshotService interface {
	Generate(ctx context.Context, input usecase.GenerateSnapshotInput) (*domain.BalanceSheetSnapshot, error)
	Get(ctx context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error)
	GetByDate(ctx context.Context, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.BalanceSheetSnapshot, error)
	Finalize(ctx context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error)
	Delete(ctx context.Context, tenantID, id string) error
	AddNote(ctx context.Context, tenantID, id, title, content string) (*domain.Note, error)
	DeleteNote(ctx context.Context, tenantID, id string, number int) error
}

// SnapshotHandler handles balance sheet snapshot requests.
type SnapshotHandler struct {
	snapshotUC SnapshotService
	defaults   domain.ReportingSettings
}

// NewSnapshotHandler creates a new SnapshotHandler. defaults fill settings a request leaves out.
func NewSnapshotHandler(snapshotUC SnapshotService, defaults domain.ReportingSettings) *SnapshotHandler {
	return &SnapshotHandler{snapshotUC: snapshotUC, defaults: defaults}
}

// Generate builds a draft snapshot from current ledger balances.
func (h *SnapshotHandler) Generate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var req dto.GenerateSnapshotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(tenant, h.defaults)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snapshot, err := h.snapshotUC.Generate(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SnapshotFromDomain(snapshot))
}

// Get retrieves a snapshot by ID.
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.snapshotUC.Get(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snapshot))
}

// List lists snapshot headers, newest first. With as_of_date it returns the
// snapshot for that date instead.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("as_of_date"); raw != "" {
		asOf, err := domain.ParseDate(raw)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		snapshot, err := h.snapshotUC.GetByDate(r.Context(), tenant, asOf)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snapshot))
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	snapshots, err := h.snapshotUC.List(r.Context(), tenant, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListSnapshotsResponse{
		Snapshots: dto.SnapshotsFromDomain(snapshots),
		Total:     int64(len(snapshots)),
	})
}

// Finalize locks a balanced draft snapshot.
func (h *SnapshotHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.snapshotUC.Finalize(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snapshot))
}

// Delete removes a draft snapshot.
func (h *SnapshotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	if err := h.snapshotUC.Delete(r.Context(), tenant, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddNote appends a note to a snapshot.
func (h *SnapshotHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	var req dto.AddNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.snapshotUC.AddNote(r.Context(), tenant, chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.NoteFromDomain(*note))
}

// DeleteNote removes a note by number.
func (h *SnapshotHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantID(w, r)
	if !ok {
		return
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid note number", chi.URLParam(r, "number"))
		return
	}

	if err := h.snapshotUC.DeleteNote(r.Context(), tenant, chi.URLParam(r, "id"), number); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
