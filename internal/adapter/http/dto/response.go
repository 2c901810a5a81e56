package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// SnapshotItemResponse is one account line of a snapshot.
type SnapshotItemResponse struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	SectionType string          `json:"section_type"`
	SubSection  string          `json:"sub_section"`
	Amount      decimal.Decimal `json:"amount"`
}

// NoteResponse represents a snapshot note.
type NoteResponse struct {
	NoteNumber int       `json:"note_number"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// NoteFromDomain converts a domain note to a response.
func NoteFromDomain(n domain.Note) NoteResponse {
	return NoteResponse{
		NoteNumber: n.NoteNumber,
		Title:      n.Title,
		Content:    n.Content,
		CreatedAt:  n.CreatedAt,
	}
}

// SnapshotResponse represents a balance sheet snapshot in API responses.
type SnapshotResponse struct {
	ID               string                 `json:"id"`
	AsOfDate         string                 `json:"as_of_date"`
	FinancialYear    string                 `json:"financial_year"`
	Status           string                 `json:"status"`
	TotalAssets      decimal.Decimal        `json:"total_assets"`
	TotalLiabilities decimal.Decimal        `json:"total_liabilities"`
	TotalEquity      decimal.Decimal        `json:"total_equity"`
	CurrentEarnings  decimal.Decimal        `json:"current_earnings"`
	IsBalanced       bool                   `json:"is_balanced"`
	Version          int64                  `json:"version"`
	Items            []SnapshotItemResponse `json:"items,omitempty"`
	Notes            []NoteResponse         `json:"notes,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	FinalizedAt      *time.Time             `json:"finalized_at,omitempty"`
}

// SnapshotFromDomain converts a domain snapshot to a response.
func SnapshotFromDomain(s *domain.BalanceSheetSnapshot) *SnapshotResponse {
	resp := &SnapshotResponse{
		ID:               s.ID,
		AsOfDate:         s.AsOfDate.Format(domain.DateLayout),
		FinancialYear:    s.FinancialYear,
		Status:           string(s.Status),
		TotalAssets:      s.TotalAssets,
		TotalLiabilities: s.TotalLiabilities,
		TotalEquity:      s.TotalEquity,
		CurrentEarnings:  s.CurrentEarnings,
		IsBalanced:       s.IsBalanced,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		FinalizedAt:      s.FinalizedAt,
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, SnapshotItemResponse{
			AccountID:   it.AccountID,
			AccountCode: it.AccountCode,
			AccountName: it.AccountName,
			SectionType: string(it.SectionType),
			SubSection:  it.SubSection,
			Amount:      it.Amount,
		})
	}
	for _, n := range s.Notes {
		resp.Notes = append(resp.Notes, NoteFromDomain(n))
	}
	return resp
}

// ListSnapshotsResponse represents a page of snapshot headers.
type ListSnapshotsResponse struct {
	Snapshots []*SnapshotResponse `json:"snapshots"`
	Total     int64               `json:"total"`
}

// SnapshotsFromDomain converts domain snapshots to responses.
func SnapshotsFromDomain(snapshots []*domain.BalanceSheetSnapshot) []*SnapshotResponse {
	result := make([]*SnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		result[i] = SnapshotFromDomain(s)
	}
	return result
}

// ComparisonLineResponse is the per-account delta between two snapshots.
type ComparisonLineResponse struct {
	AccountCode    string          `json:"account_code"`
	AccountName    string          `json:"account_name"`
	SectionType    string          `json:"section_type"`
	SubSection     string          `json:"sub_section"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	Delta          decimal.Decimal `json:"delta"`
}

// SectionComparisonResponse is the per-section delta.
type SectionComparisonResponse struct {
	SectionType    string          `json:"section_type"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	Delta          decimal.Decimal `json:"delta"`
}

// ComparisonResponse represents a comparison of two snapshots.
type ComparisonResponse struct {
	ID                   string                      `json:"id"`
	CurrentPeriodID      string                      `json:"current_period_id"`
	PreviousPeriodID     string                      `json:"previous_period_id"`
	ComparisonDate       time.Time                   `json:"comparison_date"`
	Lines                []ComparisonLineResponse    `json:"lines"`
	Sections             []SectionComparisonResponse `json:"sections"`
	CurrentEarningsDelta decimal.Decimal             `json:"current_earnings_delta"`
}

// ComparisonFromDomain converts a domain comparison to a response.
func ComparisonFromDomain(c *domain.ComparisonRecord) *ComparisonResponse {
	resp := &ComparisonResponse{
		ID:                   c.ID,
		CurrentPeriodID:      c.CurrentPeriodID,
		PreviousPeriodID:     c.PreviousPeriodID,
		ComparisonDate:       c.ComparisonDate,
		Lines:                make([]ComparisonLineResponse, 0, len(c.Lines)),
		Sections:             make([]SectionComparisonResponse, 0, len(c.Sections)),
		CurrentEarningsDelta: c.CurrentEarningsDelta,
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, ComparisonLineResponse{
			AccountCode:    l.AccountCode,
			AccountName:    l.AccountName,
			SectionType:    string(l.SectionType),
			SubSection:     l.SubSection,
			CurrentAmount:  l.CurrentAmount,
			PreviousAmount: l.PreviousAmount,
			Delta:          l.Delta,
		})
	}
	for _, s := range c.Sections {
		resp.Sections = append(resp.Sections, SectionComparisonResponse{
			SectionType:    string(s.SectionType),
			CurrentAmount:  s.CurrentAmount,
			PreviousAmount: s.PreviousAmount,
			Delta:          s.Delta,
		})
	}
	return resp
}

// OpeningBalanceResponse is an account balance carried into the next year.
type OpeningBalanceResponse struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// CloseResponse represents a completed year-end close.
type CloseResponse struct {
	ID                string                   `json:"id"`
	FinancialYear     string                   `json:"financial_year"`
	NextFinancialYear string                   `json:"next_financial_year"`
	ClosingDate       string                   `json:"closing_date"`
	NetIncome         decimal.Decimal          `json:"net_income"`
	BatchID           string                   `json:"batch_id,omitempty"`
	OpeningSnapshotID string                   `json:"opening_snapshot_id"`
	ClosedAt          time.Time                `json:"closed_at"`
	ClosingSnapshot   *SnapshotResponse        `json:"closing_snapshot"`
	OpeningSnapshot   *SnapshotResponse        `json:"opening_snapshot"`
	OpeningBalances   []OpeningBalanceResponse `json:"opening_balances"`
}

// CloseFromResult converts a close result to a response.
func CloseFromResult(r *usecase.CloseResult) *CloseResponse {
	resp := &CloseResponse{
		ID:                r.Close.ID,
		FinancialYear:     r.Close.FinancialYear,
		NextFinancialYear: r.Close.NextFinancialYear,
		ClosingDate:       r.Close.ClosingDate.Format(domain.DateLayout),
		NetIncome:         r.Close.NetIncome,
		BatchID:           r.Close.BatchID,
		OpeningSnapshotID: r.Close.OpeningSnapshotID,
		ClosedAt:          r.Close.ClosedAt,
		OpeningBalances:   make([]OpeningBalanceResponse, 0, len(r.OpeningBalances)),
	}
	if r.ClosingSnapshot != nil {
		resp.ClosingSnapshot = SnapshotFromDomain(r.ClosingSnapshot)
	}
	if r.OpeningSnapshot != nil {
		resp.OpeningSnapshot = SnapshotFromDomain(r.OpeningSnapshot)
	}
	for _, ob := range r.OpeningBalances {
		resp.OpeningBalances = append(resp.OpeningBalances, OpeningBalanceResponse{AccountID: ob.AccountID, Amount: ob.Amount})
	}
	return resp
}

// TargetResponse is an invoice or note after allocation.
type TargetResponse struct {
	ID        string          `json:"id"`
	Number    string          `json:"number"`
	Remaining decimal.Decimal `json:"remaining"`
}

// AllocationResponse represents an allocated payment.
type AllocationResponse struct {
	PaymentID         string           `json:"payment_id"`
	Amount            decimal.Decimal  `json:"amount"`
	UnallocatedAmount decimal.Decimal  `json:"unallocated_amount"`
	Invoices          []TargetResponse `json:"invoices"`
	Notes             []TargetResponse `json:"credit_or_debit_notes"`
	CreditID          string           `json:"on_account_credit_id,omitempty"`
}

// AllocationFromResult converts an allocation result to a response.
func AllocationFromResult(r *usecase.AllocationResult) *AllocationResponse {
	resp := &AllocationResponse{
		PaymentID:         r.Payment.ID,
		Amount:            r.Payment.Amount,
		UnallocatedAmount: r.Payment.UnallocatedAmount,
		Invoices:          make([]TargetResponse, 0, len(r.Invoices)),
		Notes:             make([]TargetResponse, 0, len(r.Notes)),
	}
	for _, inv := range r.Invoices {
		resp.Invoices = append(resp.Invoices, TargetResponse{ID: inv.ID, Number: inv.Number, Remaining: inv.OpenAmount})
	}
	for _, n := range r.Notes {
		resp.Notes = append(resp.Notes, TargetResponse{ID: n.ID, Number: n.Number, Remaining: n.RemainingAmount})
	}
	if r.Credit != nil {
		resp.CreditID = r.Credit.ID
	}
	return resp
}

// TrialBalanceLineResponse is one account of a trial balance.
type TrialBalanceLineResponse struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// TrialBalanceResponse represents a trial balance.
type TrialBalanceResponse struct {
	AsOfDate     string                     `json:"as_of_date"`
	Lines        []TrialBalanceLineResponse `json:"lines"`
	TotalDebits  decimal.Decimal            `json:"total_debits"`
	TotalCredits decimal.Decimal            `json:"total_credits"`
	IsBalanced   bool                       `json:"is_balanced"`
}

// TrialBalanceFromResult converts a trial balance to a response.
func TrialBalanceFromResult(tb *usecase.TrialBalance) *TrialBalanceResponse {
	resp := &TrialBalanceResponse{
		AsOfDate:     tb.AsOfDate.Format(domain.DateLayout),
		Lines:        make([]TrialBalanceLineResponse, 0, len(tb.Lines)),
		TotalDebits:  tb.TotalDebits,
		TotalCredits: tb.TotalCredits,
		IsBalanced:   tb.IsBalanced,
	}
	for _, l := range tb.Lines {
		resp.Lines = append(resp.Lines, TrialBalanceLineResponse{
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			AccountName: l.AccountName,
			Debit:       l.Debit,
			Credit:      l.Credit,
		})
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
