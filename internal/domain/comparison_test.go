package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompare(t *testing.T) {
	cur, _ := NewSnapshot("cur", "acme", testNow, "2024", []BalanceSheetItem{
		item(1, "1000", SectionAssets, 1200),
		item(2, "1500", SectionAssets, 400),
		item(3, "3000", SectionEquity, 1600),
	}, decimal.NewFromInt(50), testNow)
	prev, _ := NewSnapshot("prev", "acme", testNow, "2023", []BalanceSheetItem{
		item(1, "1000", SectionAssets, 1000),
		item(4, "2000", SectionLiabilities, 300),
		item(3, "3000", SectionEquity, 700),
	}, decimal.NewFromInt(20), testNow)

	rec, err := Compare(cur, prev, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string][3]int64{
		"1000": {1200, 1000, 200},
		"1500": {400, 0, 400},
		"2000": {0, 300, -300},
		"3000": {1600, 700, 900},
	}
	if len(rec.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(rec.Lines))
	}
	for _, l := range rec.Lines {
		w := want[l.AccountCode]
		if !l.CurrentAmount.Equal(decimal.NewFromInt(w[0])) ||
			!l.PreviousAmount.Equal(decimal.NewFromInt(w[1])) ||
			!l.Delta.Equal(decimal.NewFromInt(w[2])) {
			t.Errorf("account %s: got %s/%s/%s, want %v", l.AccountCode, l.CurrentAmount, l.PreviousAmount, l.Delta, w)
		}
	}

	// Lines follow section order.
	if rec.Lines[2].AccountCode != "2000" {
		t.Errorf("expected liabilities after assets, got %s", rec.Lines[2].AccountCode)
	}

	wantSections := map[SectionType]int64{SectionAssets: 600, SectionLiabilities: -300, SectionEquity: 900}
	if len(rec.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(rec.Sections))
	}
	for _, sc := range rec.Sections {
		if !sc.Delta.Equal(decimal.NewFromInt(wantSections[sc.SectionType])) {
			t.Errorf("section %s: expected delta %d, got %s", sc.SectionType, wantSections[sc.SectionType], sc.Delta)
		}
	}

	if !rec.CurrentEarningsDelta.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected earnings delta 30, got %s", rec.CurrentEarningsDelta)
	}
}

func TestCompare_Errors(t *testing.T) {
	a := &BalanceSheetSnapshot{ID: "a", TenantID: "acme"}
	b := &BalanceSheetSnapshot{ID: "b", TenantID: "other"}

	if _, err := Compare(a, a, testNow); !errors.Is(err, ErrInvalidComparison) {
		t.Errorf("expected ErrInvalidComparison, got %v", err)
	}
	if _, err := Compare(a, b, testNow); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound across tenants, got %v", err)
	}
}
