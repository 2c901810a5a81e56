package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/adapter/http/dto"
	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

type closeServiceStub struct {
	closeFn func(ctx context.Context, input usecase.CloseInput) (*usecase.CloseResult, error)
}

func (s *closeServiceStub) Close(ctx context.Context, input usecase.CloseInput) (*usecase.CloseResult, error) {
	return s.closeFn(ctx, input)
}

type comparisonServiceStub struct {
	compareFn func(ctx context.Context, tenantID, currentID, previousID string) (*domain.ComparisonRecord, error)
}

func (s *comparisonServiceStub) Compare(ctx context.Context, tenantID, currentID, previousID string) (*domain.ComparisonRecord, error) {
	return s.compareFn(ctx, tenantID, currentID, previousID)
}

func TestCloseHandler_Close_Success(t *testing.T) {
	var captured usecase.CloseInput
	h := NewCloseHandler(&closeServiceStub{
		closeFn: func(ctx context.Context, input usecase.CloseInput) (*usecase.CloseResult, error) {
			captured = input
			return &usecase.CloseResult{
				Close: &domain.YearEndClose{
					ID:            "close-1",
					FinancialYear: "2024",
					ClosingDate:   input.ClosingDate,
					NetIncome:     decimal.RequireFromString("500"),
				},
			}, nil
		},
	}, domain.ReportingSettings{RetainedEarningsAccountID: 3200})

	body, _ := json.Marshal(dto.CloseRequest{FinancialYear: "2024", ClosingDate: "2024-12-31"})
	rec := httptest.NewRecorder()
	h.Close(rec, tenantRequest(http.MethodPost, "/closes", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Settings.RetainedEarningsAccountID != 3200 || !captured.ClosingDate.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.CloseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "close-1" || resp.NetIncome.String() != "500" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCloseHandler_Close_AlreadyClosed(t *testing.T) {
	h := NewCloseHandler(&closeServiceStub{
		closeFn: func(ctx context.Context, input usecase.CloseInput) (*usecase.CloseResult, error) {
			return nil, domain.ErrPeriodAlreadyClosed
		},
	}, domain.ReportingSettings{})

	body, _ := json.Marshal(dto.CloseRequest{FinancialYear: "2024", ClosingDate: "2024-12-31"})
	rec := httptest.NewRecorder()
	h.Close(rec, tenantRequest(http.MethodPost, "/closes", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCloseHandler_Close_MissingTenant(t *testing.T) {
	h := NewCloseHandler(&closeServiceStub{}, domain.ReportingSettings{})

	rec := httptest.NewRecorder()
	h.Close(rec, httptest.NewRequest(http.MethodPost, "/closes", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestComparisonHandler_Compare(t *testing.T) {
	h := NewComparisonHandler(&comparisonServiceStub{
		compareFn: func(ctx context.Context, tenantID, currentID, previousID string) (*domain.ComparisonRecord, error) {
			if currentID == previousID {
				return nil, domain.ErrInvalidComparison
			}
			return &domain.ComparisonRecord{ID: "cmp-1", CurrentPeriodID: currentID, PreviousPeriodID: previousID}, nil
		},
	})

	body, _ := json.Marshal(dto.CompareRequest{CurrentSnapshotID: "s2", PreviousSnapshotID: "s1"})
	rec := httptest.NewRecorder()
	h.Compare(rec, tenantRequest(http.MethodPost, "/comparisons", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.ComparisonResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentPeriodID != "s2" || resp.PreviousPeriodID != "s1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	body, _ = json.Marshal(dto.CompareRequest{CurrentSnapshotID: "s1", PreviousSnapshotID: "s1"})
	rec = httptest.NewRecorder()
	h.Compare(rec, tenantRequest(http.MethodPost, "/comparisons", body))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for self comparison, got %d", rec.Code)
	}

	body, _ = json.Marshal(dto.CompareRequest{CurrentSnapshotID: "s1"})
	rec = httptest.NewRecorder()
	h.Compare(rec, tenantRequest(http.MethodPost, "/comparisons", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rec.Code)
	}
}
