package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDirection tells whether money came in from a customer or went out to a vendor.
type PaymentDirection string

const (
	PaymentReceipt      PaymentDirection = "receipt"
	PaymentDisbursement PaymentDirection = "disbursement"
)

// AdjustmentKind distinguishes credit notes from debit notes.
type AdjustmentKind string

const (
	AdjustmentCredit AdjustmentKind = "credit"
	AdjustmentDebit  AdjustmentKind = "debit"
)

// AllocationLine assigns part of a payment to an invoice.
type AllocationLine struct {
	InvoiceID string
	Amount    decimal.Decimal
}

// NoteLine assigns part of a payment to a credit or debit note.
type NoteLine struct {
	NoteID string
	Amount decimal.Decimal
}

// Payment is a receipt or disbursement being allocated.
type Payment struct {
	ID             string
	TenantID       string
	Direction      PaymentDirection
	PaymentDate    time.Time
	CounterpartyID string
	BankAccountID  string
	Amount         decimal.Decimal
	Allocations    []AllocationLine
	Notes          []NoteLine
	// UnallocatedAmount is recorded as an on-account credit.
	UnallocatedAmount decimal.Decimal
	CreatedAt         time.Time
}

// Invoice is an allocation target with an open balance.
type Invoice struct {
	ID             string
	TenantID       string
	CounterpartyID string
	Number         string
	TotalAmount    decimal.Decimal
	OpenAmount     decimal.Decimal
	Version        int64
}

// AdjustmentNote is a credit or debit note with an unapplied remainder.
type AdjustmentNote struct {
	ID              string
	TenantID        string
	CounterpartyID  string
	Number          string
	Kind            AdjustmentKind
	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal
	Version         int64
}

// OnAccountCredit holds the part of a payment not applied to any target.
type OnAccountCredit struct {
	ID             string
	TenantID       string
	CounterpartyID string
	PaymentID      string
	Amount         decimal.Decimal
	CreatedAt      time.Time
}

// Validate checks the payment's own fields. today bounds the payment date.
func (p *Payment) Validate(today time.Time) error {
	if strings.TrimSpace(p.TenantID) == "" {
		return ErrInvalidTenant
	}

	switch p.Direction {
	case PaymentReceipt, PaymentDisbursement:
	default:
		return fmt.Errorf("%w: unknown payment direction %q", ErrInvalidPayment, p.Direction)
	}

	if p.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment date is required", ErrInvalidDate)
	}
	if DateOnly(p.PaymentDate).After(DateOnly(today)) {
		return fmt.Errorf("%w: payment date %s is in the future", ErrInvalidDate, p.PaymentDate.Format(DateLayout))
	}

	if strings.TrimSpace(p.CounterpartyID) == "" {
		return fmt.Errorf("%w: counterparty is required", ErrInvalidPayment)
	}
	if strings.TrimSpace(p.BankAccountID) == "" {
		return fmt.Errorf("%w: bank account is required", ErrInvalidPayment)
	}

	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}

	if len(p.Allocations) == 0 && len(p.Notes) == 0 {
		return ErrNoAllocationTarget
	}

	for i, l := range p.Allocations {
		if strings.TrimSpace(l.InvoiceID) == "" {
			return fmt.Errorf("%w: allocation %d has no invoice", ErrInvoiceNotFound, i+1)
		}
		if !l.Amount.IsPositive() {
			return fmt.Errorf("%w: allocation %d", ErrInvalidAmount, i+1)
		}
	}
	for i, l := range p.Notes {
		if strings.TrimSpace(l.NoteID) == "" {
			return fmt.Errorf("%w: note line %d has no note", ErrAdjustmentNotFound, i+1)
		}
		if !l.Amount.IsPositive() {
			return fmt.Errorf("%w: note line %d", ErrInvalidAmount, i+1)
		}
	}

	return nil
}

// AllocatedTotal sums every allocation and note line.
func (p *Payment) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Allocations {
		total = total.Add(l.Amount)
	}
	for _, l := range p.Notes {
		total = total.Add(l.Amount)
	}
	return total
}

// InvoiceIDs returns the distinct invoice ids in input order.
func (p *Payment) InvoiceIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, l := range p.Allocations {
		if !seen[l.InvoiceID] {
			seen[l.InvoiceID] = true
			ids = append(ids, l.InvoiceID)
		}
	}
	return ids
}

// NoteIDs returns the distinct note ids in input order.
func (p *Payment) NoteIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, l := range p.Notes {
		if !seen[l.NoteID] {
			seen[l.NoteID] = true
			ids = append(ids, l.NoteID)
		}
	}
	return ids
}

// AllocationPlan is the set of balance changes produced by a payment.
type AllocationPlan struct {
	Invoices    []*Invoice
	Notes       []*AdjustmentNote
	Unallocated decimal.Decimal
}

// PlanAllocation applies the payment's lines in input order to copies of the
// targets. Nothing passed in is mutated; an error means no line applies.
func PlanAllocation(p *Payment, invoices map[string]*Invoice, notes map[string]*AdjustmentNote) (*AllocationPlan, error) {
	total := p.AllocatedTotal()
	if total.GreaterThan(p.Amount) {
		return nil, fmt.Errorf("%w: lines total %s exceeds payment amount %s", ErrOverAllocation, total, p.Amount)
	}

	workInv := make(map[string]*Invoice, len(invoices))
	var invOrder []*Invoice
	for i, l := range p.Allocations {
		inv, ok := workInv[l.InvoiceID]
		if !ok {
			src, found := invoices[l.InvoiceID]
			if !found || src.TenantID != p.TenantID {
				return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, l.InvoiceID)
			}
			if src.CounterpartyID != p.CounterpartyID {
				return nil, fmt.Errorf("%w: invoice %s", ErrCounterpartyMismatch, src.Number)
			}
			cp := *src
			inv = &cp
			workInv[l.InvoiceID] = inv
			invOrder = append(invOrder, inv)
		}

		if l.Amount.GreaterThan(inv.OpenAmount) {
			return nil, fmt.Errorf("%w: line %d allocates %s to invoice %s with open amount %s",
				ErrOverAllocation, i+1, l.Amount, inv.Number, inv.OpenAmount)
		}
		inv.OpenAmount = inv.OpenAmount.Sub(l.Amount)
	}

	workNotes := make(map[string]*AdjustmentNote, len(notes))
	var noteOrder []*AdjustmentNote
	for i, l := range p.Notes {
		n, ok := workNotes[l.NoteID]
		if !ok {
			src, found := notes[l.NoteID]
			if !found || src.TenantID != p.TenantID {
				return nil, fmt.Errorf("%w: %s", ErrAdjustmentNotFound, l.NoteID)
			}
			if src.CounterpartyID != p.CounterpartyID {
				return nil, fmt.Errorf("%w: note %s", ErrCounterpartyMismatch, src.Number)
			}
			cp := *src
			n = &cp
			workNotes[l.NoteID] = n
			noteOrder = append(noteOrder, n)
		}

		if l.Amount.GreaterThan(n.RemainingAmount) {
			return nil, fmt.Errorf("%w: line %d applies %s to note %s with remaining amount %s",
				ErrOverAllocation, i+1, l.Amount, n.Number, n.RemainingAmount)
		}
		n.RemainingAmount = n.RemainingAmount.Sub(l.Amount)
	}

	return &AllocationPlan{
		Invoices:    invOrder,
		Notes:       noteOrder,
		Unallocated: p.Amount.Sub(total),
	}, nil
}
