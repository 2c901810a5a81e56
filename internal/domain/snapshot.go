package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotStatus is the lifecycle state of a balance sheet snapshot.
type SnapshotStatus string

const (
	SnapshotStatusDraft     SnapshotStatus = "draft"
	SnapshotStatusFinalized SnapshotStatus = "finalized"
)

// BalanceSheetItem is one account line of a snapshot.
type BalanceSheetItem struct {
	AccountID   int64
	AccountCode string
	AccountName string
	SectionType SectionType
	SubSection  string
	Amount      decimal.Decimal
}

// Note is commentary attached to a snapshot.
type Note struct {
	NoteNumber int
	Title      string
	Content    string
	CreatedAt  time.Time
}

// BalanceSheetSnapshot is a balance sheet captured at one date.
type BalanceSheetSnapshot struct {
	ID               string
	TenantID         string
	AsOfDate         time.Time
	FinancialYear    string
	Status           SnapshotStatus
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
	// CurrentEarnings is unclosed revenue minus expense, included in TotalEquity.
	CurrentEarnings decimal.Decimal
	IsBalanced      bool
	Version         int64
	Items           []BalanceSheetItem
	Notes           []Note
	// NextNoteNumber is the number the next appended note receives.
	NextNoteNumber int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinalizedAt    *time.Time
}

// NewSnapshot builds a draft snapshot from items and computes its totals.
// Items are stored ordered by section, sub-section and account code.
func NewSnapshot(id, tenantID string, asOf time.Time, financialYear string, items []BalanceSheetItem, currentEarnings decimal.Decimal, now time.Time) (*BalanceSheetSnapshot, error) {
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if seen[it.AccountID] {
			return nil, fmt.Errorf("%w: account %d appears twice", ErrDuplicateAccount, it.AccountID)
		}
		seen[it.AccountID] = true
	}

	sorted := make([]BalanceSheetItem, len(items))
	copy(sorted, items)
	SortItems(sorted)

	s := &BalanceSheetSnapshot{
		ID:              id,
		TenantID:        tenantID,
		AsOfDate:        DateOnly(asOf),
		FinancialYear:   strings.TrimSpace(financialYear),
		Status:          SnapshotStatusDraft,
		CurrentEarnings: currentEarnings,
		Items:           sorted,
		NextNoteNumber:  1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.computeTotals()
	ValidateBalance(s)

	return s, nil
}

func (s *BalanceSheetSnapshot) computeTotals() {
	totals := SectionTotals(s.Items)
	s.TotalAssets = totals[SectionAssets]
	s.TotalLiabilities = totals[SectionLiabilities]
	s.TotalEquity = totals[SectionEquity].Add(s.CurrentEarnings)
}

// SectionTotals sums item amounts per section.
func SectionTotals(items []BalanceSheetItem) map[SectionType]decimal.Decimal {
	totals := map[SectionType]decimal.Decimal{
		SectionAssets:      decimal.Zero,
		SectionLiabilities: decimal.Zero,
		SectionEquity:      decimal.Zero,
	}
	for _, it := range items {
		totals[it.SectionType] = totals[it.SectionType].Add(it.Amount)
	}
	return totals
}

// SortItems orders items by section, sub-section and account code.
func SortItems(items []BalanceSheetItem) {
	order := map[SectionType]int{SectionAssets: 0, SectionLiabilities: 1, SectionEquity: 2}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if order[a.SectionType] != order[b.SectionType] {
			return order[a.SectionType] < order[b.SectionType]
		}
		if a.SubSection != b.SubSection {
			return a.SubSection < b.SubSection
		}
		return a.AccountCode < b.AccountCode
	})
}

// ValidateBalance applies the accounting identity and records the outcome.
// Comparison is exact; money has no tolerance.
func ValidateBalance(s *BalanceSheetSnapshot) bool {
	s.IsBalanced = s.TotalAssets.Equal(s.TotalLiabilities.Add(s.TotalEquity))
	return s.IsBalanced
}

// IsFinalized reports whether the snapshot reached its terminal state.
func (s *BalanceSheetSnapshot) IsFinalized() bool {
	return s.Status == SnapshotStatusFinalized
}

// Finalize locks the snapshot's figures.
func (s *BalanceSheetSnapshot) Finalize(now time.Time) error {
	if s.IsFinalized() {
		return ErrAlreadyFinalized
	}
	if !s.IsBalanced {
		return fmt.Errorf("%w: assets %s, liabilities %s, equity %s",
			ErrUnbalancedSnapshot, s.TotalAssets, s.TotalLiabilities, s.TotalEquity)
	}

	s.Status = SnapshotStatusFinalized
	s.FinalizedAt = &now
	s.UpdatedAt = now
	return nil
}

// CanDelete reports whether the snapshot may be destroyed.
func (s *BalanceSheetSnapshot) CanDelete() error {
	if s.IsFinalized() {
		return ErrSnapshotFinalized
	}
	return nil
}

// ReplaceWith overwrites a draft's figures with a regenerated snapshot.
// Identity, notes and creation time are kept; the version is bumped.
func (s *BalanceSheetSnapshot) ReplaceWith(fresh *BalanceSheetSnapshot, now time.Time) error {
	if s.IsFinalized() {
		return ErrSnapshotAlreadyFinalized
	}

	s.FinancialYear = fresh.FinancialYear
	s.Items = fresh.Items
	s.CurrentEarnings = fresh.CurrentEarnings
	s.TotalAssets = fresh.TotalAssets
	s.TotalLiabilities = fresh.TotalLiabilities
	s.TotalEquity = fresh.TotalEquity
	s.IsBalanced = fresh.IsBalanced
	s.Version++
	s.UpdatedAt = now
	return nil
}

// AddNote appends a note and assigns it the next number.
// Notes may be attached regardless of status.
func (s *BalanceSheetSnapshot) AddNote(title, content string, now time.Time) (Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Note{}, fmt.Errorf("%w: title is required", ErrInvalidNote)
	}
	if len(title) > MaxNoteTitleLength {
		return Note{}, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidNote, MaxNoteTitleLength)
	}

	if s.NextNoteNumber < 1 {
		s.NextNoteNumber = 1
	}

	n := Note{
		NoteNumber: s.NextNoteNumber,
		Title:      title,
		Content:    content,
		CreatedAt:  now,
	}
	s.Notes = append(s.Notes, n)
	s.NextNoteNumber++
	return n, nil
}

// RemoveNote deletes a note by number. Remaining notes keep their numbers.
func (s *BalanceSheetSnapshot) RemoveNote(number int) error {
	for i, n := range s.Notes {
		if n.NoteNumber == number {
			s.Notes = append(s.Notes[:i], s.Notes[i+1:]...)
			return nil
		}
	}
	return ErrNoteNotFound
}

// ItemsByCode indexes items by account code.
func (s *BalanceSheetSnapshot) ItemsByCode() map[string]BalanceSheetItem {
	m := make(map[string]BalanceSheetItem, len(s.Items))
	for _, it := range s.Items {
		m[it.AccountCode] = it
	}
	return m
}

// Clone returns a deep copy of the snapshot.
func (s *BalanceSheetSnapshot) Clone() *BalanceSheetSnapshot {
	c := *s
	c.Items = append([]BalanceSheetItem(nil), s.Items...)
	c.Notes = append([]Note(nil), s.Notes...)
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
