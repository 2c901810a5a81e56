package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// GenerateSnapshotRequest represents a request to generate a balance sheet snapshot.
type GenerateSnapshotRequest struct {
	AsOfDate      string `json:"as_of_date"`
	FinancialYear string `json:"financial_year"`
	// IncludeZeroBalances overrides the server default when set.
	IncludeZeroBalances *bool `json:"include_zero_balances,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *GenerateSnapshotRequest) ToUseCaseInput(tenantID string, defaults domain.ReportingSettings) (usecase.GenerateSnapshotInput, error) {
	asOf, err := domain.ParseDate(r.AsOfDate)
	if err != nil {
		return usecase.GenerateSnapshotInput{}, err
	}

	settings := defaults
	if r.IncludeZeroBalances != nil {
		settings.IncludeZeroBalances = *r.IncludeZeroBalances
	}

	return usecase.GenerateSnapshotInput{
		TenantID:      tenantID,
		AsOfDate:      asOf,
		FinancialYear: r.FinancialYear,
		Settings:      settings,
	}, nil
}

// AddNoteRequest represents a request to attach a note to a snapshot.
type AddNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CompareRequest represents a request to compare two snapshots.
type CompareRequest struct {
	CurrentSnapshotID  string `json:"current_snapshot_id"`
	PreviousSnapshotID string `json:"previous_snapshot_id"`
}

// CloseRequest represents a request to close a financial year.
type CloseRequest struct {
	FinancialYear     string `json:"financial_year"`
	ClosingDate       string `json:"closing_date"`
	NextFinancialYear string `json:"next_financial_year,omitempty"`
	// RetainedEarningsAccountID overrides the server default when set.
	RetainedEarningsAccountID *int64 `json:"retained_earnings_account_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CloseRequest) ToUseCaseInput(tenantID string, defaults domain.ReportingSettings) (usecase.CloseInput, error) {
	closingDate, err := domain.ParseDate(r.ClosingDate)
	if err != nil {
		return usecase.CloseInput{}, err
	}

	settings := defaults
	if r.RetainedEarningsAccountID != nil {
		settings.RetainedEarningsAccountID = *r.RetainedEarningsAccountID
	}

	return usecase.CloseInput{
		TenantID:          tenantID,
		FinancialYear:     r.FinancialYear,
		ClosingDate:       closingDate,
		NextFinancialYear: r.NextFinancialYear,
		Settings:          settings,
	}, nil
}

// AllocationLineRequest assigns part of a payment to an invoice.
type AllocationLineRequest struct {
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// NoteLineRequest assigns part of a payment to a credit or debit note.
type NoteLineRequest struct {
	NoteID string          `json:"note_id"`
	Amount decimal.Decimal `json:"amount"`
}

// AllocatePaymentRequest represents a payment to allocate.
type AllocatePaymentRequest struct {
	Direction      string                  `json:"direction"`
	PaymentDate    string                  `json:"payment_date"`
	CounterpartyID string                  `json:"counterparty_id"`
	BankAccountID  string                  `json:"bank_account_id"`
	Amount         decimal.Decimal         `json:"amount"`
	Allocations    []AllocationLineRequest `json:"allocations,omitempty"`
	Notes          []NoteLineRequest       `json:"credit_or_debit_notes,omitempty"`
}

// ToDomain converts to a domain payment. Lines keep request order.
func (r *AllocatePaymentRequest) ToDomain(tenantID string) (domain.Payment, error) {
	paymentDate, err := domain.ParseDate(r.PaymentDate)
	if err != nil {
		return domain.Payment{}, err
	}

	p := domain.Payment{
		TenantID:       tenantID,
		Direction:      domain.PaymentDirection(r.Direction),
		PaymentDate:    paymentDate,
		CounterpartyID: r.CounterpartyID,
		BankAccountID:  r.BankAccountID,
		Amount:         r.Amount,
	}
	for _, a := range r.Allocations {
		p.Allocations = append(p.Allocations, domain.AllocationLine{InvoiceID: a.InvoiceID, Amount: a.Amount})
	}
	for _, n := range r.Notes {
		p.Notes = append(p.Notes, domain.NoteLine{NoteID: n.NoteID, Amount: n.Amount})
	}
	return p, nil
}
