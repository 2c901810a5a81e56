package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

func TestSnapshotFromDomain(t *testing.T) {
	now := time.Now()
	snap := &domain.BalanceSheetSnapshot{
		ID:            "snap-1",
		AsOfDate:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		FinancialYear: "2024",
		Status:        domain.SnapshotStatusDraft,
		TotalAssets:   decimal.RequireFromString("1000"),
		TotalEquity:   decimal.RequireFromString("1000"),
		IsBalanced:    true,
		Version:       2,
		Items: []domain.BalanceSheetItem{
			{AccountID: 1, AccountCode: "1000", AccountName: "Cash", SectionType: domain.SectionAssets, SubSection: "current", Amount: decimal.RequireFromString("1000")},
		},
		Notes:     []domain.Note{{NoteNumber: 1, Title: "Audit", Content: "ok", CreatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := SnapshotFromDomain(snap)
	if resp.ID != "snap-1" || resp.AsOfDate != "2024-12-31" || resp.Status != "draft" || resp.Version != 2 {
		t.Fatalf("unexpected snapshot response: %+v", resp)
	}
	if len(resp.Items) != 1 || resp.Items[0].SectionType != string(domain.SectionAssets) {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].NoteNumber != 1 {
		t.Fatalf("unexpected notes: %+v", resp.Notes)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["total_assets"] != "1000" {
		t.Fatalf("amounts must encode as strings, got %v", decoded["total_assets"])
	}
	if _, ok := decoded["finalized_at"]; ok {
		t.Fatalf("draft snapshot should omit finalized_at")
	}

	list := SnapshotsFromDomain([]*domain.BalanceSheetSnapshot{snap})
	if len(list) != 1 || list[0].ID != "snap-1" {
		t.Fatalf("SnapshotsFromDomain returned %+v", list)
	}
}

func TestComparisonFromDomain(t *testing.T) {
	rec := &domain.ComparisonRecord{
		ID:               "cmp-1",
		CurrentPeriodID:  "s2",
		PreviousPeriodID: "s1",
		Lines: []domain.ComparisonLine{
			{AccountCode: "1000", SectionType: domain.SectionAssets, CurrentAmount: decimal.NewFromInt(150), PreviousAmount: decimal.NewFromInt(100), Delta: decimal.NewFromInt(50)},
		},
		Sections: []domain.SectionComparison{
			{SectionType: domain.SectionAssets, CurrentAmount: decimal.NewFromInt(150), PreviousAmount: decimal.NewFromInt(100), Delta: decimal.NewFromInt(50)},
		},
		CurrentEarningsDelta: decimal.NewFromInt(50),
	}

	resp := ComparisonFromDomain(rec)
	if resp.CurrentPeriodID != "s2" || len(resp.Lines) != 1 || len(resp.Sections) != 1 {
		t.Fatalf("unexpected comparison response: %+v", resp)
	}
	if !resp.Lines[0].Delta.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected delta: %s", resp.Lines[0].Delta)
	}
}

func TestCloseFromResult(t *testing.T) {
	result := &usecase.CloseResult{
		Close: &domain.YearEndClose{
			ID:                "close-1",
			FinancialYear:     "2024",
			NextFinancialYear: "2025",
			ClosingDate:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			NetIncome:         decimal.RequireFromString("500"),
			OpeningSnapshotID: "snap-open",
		},
		OpeningSnapshot: &domain.BalanceSheetSnapshot{ID: "snap-open", Status: domain.SnapshotStatusFinalized},
		OpeningBalances: []domain.OpeningBalance{{AccountID: 3200, FinancialYear: "2025", Amount: decimal.RequireFromString("500")}},
	}

	resp := CloseFromResult(result)
	if resp.ClosingDate != "2024-12-31" || resp.OpeningSnapshotID != "snap-open" {
		t.Fatalf("unexpected close response: %+v", resp)
	}
	if resp.ClosingSnapshot != nil {
		t.Fatalf("closing snapshot should be nil")
	}
	if resp.OpeningSnapshot == nil || resp.OpeningSnapshot.Status != "finalized" {
		t.Fatalf("unexpected opening snapshot: %+v", resp.OpeningSnapshot)
	}
	if len(resp.OpeningBalances) != 1 || resp.OpeningBalances[0].AccountID != 3200 {
		t.Fatalf("unexpected opening balances: %+v", resp.OpeningBalances)
	}
}

func TestAllocationFromResult(t *testing.T) {
	result := &usecase.AllocationResult{
		Payment: &domain.Payment{
			ID:                "pay-1",
			Amount:            decimal.RequireFromString("150"),
			UnallocatedAmount: decimal.RequireFromString("20"),
		},
		Invoices: []*domain.Invoice{{ID: "inv-1", Number: "INV-1", OpenAmount: decimal.Zero}},
		Notes:    []*domain.AdjustmentNote{{ID: "cn-1", Number: "CN-1", RemainingAmount: decimal.RequireFromString("5")}},
		Credit:   &domain.OnAccountCredit{ID: "credit-1"},
	}

	resp := AllocationFromResult(result)
	if resp.PaymentID != "pay-1" || resp.CreditID != "credit-1" {
		t.Fatalf("unexpected allocation response: %+v", resp)
	}
	if len(resp.Invoices) != 1 || !resp.Invoices[0].Remaining.IsZero() {
		t.Fatalf("unexpected invoices: %+v", resp.Invoices)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].Remaining.String() != "5" {
		t.Fatalf("unexpected notes: %+v", resp.Notes)
	}
}

func TestTrialBalanceFromResult(t *testing.T) {
	tb := &usecase.TrialBalance{
		AsOfDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Lines: []usecase.TrialBalanceLine{
			{AccountID: 1, AccountCode: "1000", Debit: decimal.NewFromInt(100), Credit: decimal.Zero},
			{AccountID: 2, AccountCode: "3000", Debit: decimal.Zero, Credit: decimal.NewFromInt(100)},
		},
		TotalDebits:  decimal.NewFromInt(100),
		TotalCredits: decimal.NewFromInt(100),
		IsBalanced:   true,
	}

	resp := TrialBalanceFromResult(tb)
	if resp.AsOfDate != "2024-12-31" || len(resp.Lines) != 2 || !resp.IsBalanced {
		t.Fatalf("unexpected trial balance response: %+v", resp)
	}
}
