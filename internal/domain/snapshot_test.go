package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func item(id int64, code string, section SectionType, amount int64) BalanceSheetItem {
	return BalanceSheetItem{
		AccountID:   id,
		AccountCode: code,
		SectionType: section,
		Amount:      decimal.NewFromInt(amount),
	}
}

func TestNewSnapshot(t *testing.T) {
	tests := []struct {
		name         string
		items        []BalanceSheetItem
		earnings     int64
		wantAssets   int64
		wantEquity   int64
		wantBalanced bool
		expectedErr  error
	}{
		{
			name: "balanced",
			items: []BalanceSheetItem{
				item(1, "1000", SectionAssets, 10000),
				item(2, "2000", SectionLiabilities, 4000),
				item(3, "3000", SectionEquity, 6000),
			},
			wantAssets:   10000,
			wantEquity:   6000,
			wantBalanced: true,
		},
		{
			name: "current earnings close the gap",
			items: []BalanceSheetItem{
				item(1, "1000", SectionAssets, 1500),
				item(3, "3000", SectionEquity, 1000),
			},
			earnings:     500,
			wantAssets:   1500,
			wantEquity:   1500,
			wantBalanced: true,
		},
		{
			name: "any difference is unbalanced",
			items: []BalanceSheetItem{
				item(1, "1000", SectionAssets, 100),
				item(3, "3000", SectionEquity, 99),
			},
			wantAssets:   100,
			wantEquity:   99,
			wantBalanced: false,
		},
		{
			name: "duplicate account",
			items: []BalanceSheetItem{
				item(1, "1000", SectionAssets, 100),
				item(1, "1000", SectionAssets, 100),
			},
			expectedErr: ErrDuplicateAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asOf := time.Date(2024, 12, 31, 18, 30, 0, 0, time.UTC)
			s, err := NewSnapshot("s1", "acme", asOf, " 2024 ", tt.items, decimal.NewFromInt(tt.earnings), testNow)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !s.TotalAssets.Equal(decimal.NewFromInt(tt.wantAssets)) {
				t.Errorf("expected assets %d, got %s", tt.wantAssets, s.TotalAssets)
			}
			if !s.TotalEquity.Equal(decimal.NewFromInt(tt.wantEquity)) {
				t.Errorf("expected equity %d, got %s", tt.wantEquity, s.TotalEquity)
			}
			if s.IsBalanced != tt.wantBalanced {
				t.Errorf("expected balanced=%v", tt.wantBalanced)
			}
			if s.Status != SnapshotStatusDraft {
				t.Errorf("expected draft, got %s", s.Status)
			}
			if s.FinancialYear != "2024" {
				t.Errorf("expected trimmed financial year, got %q", s.FinancialYear)
			}
			if !s.AsOfDate.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("expected date truncated, got %s", s.AsOfDate)
			}
		})
	}
}

func TestNewSnapshot_OrdersItems(t *testing.T) {
	items := []BalanceSheetItem{
		item(3, "3000", SectionEquity, 5),
		{AccountID: 4, AccountCode: "1500", SectionType: SectionAssets, SubSection: SubNonCurrentAssets, Amount: decimal.NewFromInt(2)},
		{AccountID: 1, AccountCode: "1100", SectionType: SectionAssets, SubSection: SubCurrentAssets, Amount: decimal.NewFromInt(1)},
		{AccountID: 2, AccountCode: "1000", SectionType: SectionAssets, SubSection: SubCurrentAssets, Amount: decimal.NewFromInt(2)},
	}

	s, err := NewSnapshot("s1", "acme", testNow, "2024", items, decimal.Zero, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"1000", "1100", "1500", "3000"}
	for i, code := range want {
		if s.Items[i].AccountCode != code {
			t.Errorf("position %d: expected %s, got %s", i, code, s.Items[i].AccountCode)
		}
	}
	if items[0].AccountCode != "3000" {
		t.Error("input slice was reordered")
	}
}

func TestSnapshot_Finalize(t *testing.T) {
	balanced, _ := NewSnapshot("s1", "acme", testNow, "2024",
		[]BalanceSheetItem{item(1, "1000", SectionAssets, 10), item(2, "3000", SectionEquity, 10)}, decimal.Zero, testNow)
	unbalanced, _ := NewSnapshot("s2", "acme", testNow, "2024",
		[]BalanceSheetItem{item(1, "1000", SectionAssets, 10)}, decimal.Zero, testNow)

	if err := unbalanced.Finalize(testNow); !errors.Is(err, ErrUnbalancedSnapshot) {
		t.Errorf("expected ErrUnbalancedSnapshot, got %v", err)
	}
	if unbalanced.IsFinalized() {
		t.Error("unbalanced snapshot must stay draft")
	}

	if err := balanced.Finalize(testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balanced.IsFinalized() || balanced.FinalizedAt == nil {
		t.Error("expected finalized snapshot with timestamp")
	}
	if err := balanced.Finalize(testNow); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}
	if err := balanced.CanDelete(); !errors.Is(err, ErrSnapshotFinalized) {
		t.Errorf("expected ErrSnapshotFinalized, got %v", err)
	}
	if err := unbalanced.CanDelete(); err != nil {
		t.Errorf("draft should be deletable, got %v", err)
	}
}

func TestSnapshot_ReplaceWith(t *testing.T) {
	draft, _ := NewSnapshot("s1", "acme", testNow, "2024",
		[]BalanceSheetItem{item(1, "1000", SectionAssets, 10)}, decimal.Zero, testNow)
	if _, err := draft.AddNote("Basis", "", testNow); err != nil {
		t.Fatalf("add note failed: %v", err)
	}

	fresh, _ := NewSnapshot("s2", "acme", testNow, "2024",
		[]BalanceSheetItem{item(1, "1000", SectionAssets, 20), item(2, "3000", SectionEquity, 20)}, decimal.Zero, testNow)

	later := testNow.Add(time.Hour)
	if err := draft.ReplaceWith(fresh, later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if draft.ID != "s1" || len(draft.Notes) != 1 {
		t.Errorf("expected identity and notes kept, got id %s notes %d", draft.ID, len(draft.Notes))
	}
	if draft.Version != 1 || !draft.UpdatedAt.Equal(later) {
		t.Errorf("expected version bump, got %d", draft.Version)
	}
	if !draft.IsBalanced || !draft.TotalAssets.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected fresh figures, got assets %s", draft.TotalAssets)
	}

	_ = draft.Finalize(later)
	if err := draft.ReplaceWith(fresh, later); !errors.Is(err, ErrSnapshotAlreadyFinalized) {
		t.Errorf("expected ErrSnapshotAlreadyFinalized, got %v", err)
	}
}

func TestSnapshot_Notes(t *testing.T) {
	s, _ := NewSnapshot("s1", "acme", testNow, "2024", nil, decimal.Zero, testNow)

	for _, title := range []string{"One", "Two", "Three"} {
		if _, err := s.AddNote(title, "body", testNow); err != nil {
			t.Fatalf("add %s failed: %v", title, err)
		}
	}

	if err := s.RemoveNote(2); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := s.RemoveNote(2); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound, got %v", err)
	}

	n, err := s.AddNote("Four", "", testNow)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if n.NoteNumber != 4 {
		t.Errorf("numbers are never reused: expected 4, got %d", n.NoteNumber)
	}
	if s.Notes[1].NoteNumber != 3 {
		t.Errorf("remaining notes keep their numbers, got %d", s.Notes[1].NoteNumber)
	}

	if _, err := s.AddNote("   ", "", testNow); !errors.Is(err, ErrInvalidNote) {
		t.Errorf("expected ErrInvalidNote, got %v", err)
	}
}

func TestSnapshot_Clone(t *testing.T) {
	s, _ := NewSnapshot("s1", "acme", testNow, "2024",
		[]BalanceSheetItem{item(1, "1000", SectionAssets, 10)}, decimal.Zero, testNow)
	_, _ = s.AddNote("One", "", testNow)

	c := s.Clone()
	c.Items[0].Amount = decimal.NewFromInt(99)
	c.Notes[0].Title = "changed"

	if !s.Items[0].Amount.Equal(decimal.NewFromInt(10)) || s.Notes[0].Title != "One" {
		t.Error("clone shares slices with the original")
	}
}
