package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testPayment(amount int64) *Payment {
	return &Payment{
		TenantID:       "acme",
		Direction:      PaymentReceipt,
		PaymentDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		CounterpartyID: "cust-1",
		BankAccountID:  "bank-1",
		Amount:         decimal.NewFromInt(amount),
	}
}

func TestPayment_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(p *Payment)
		expectedErr error
	}{
		{
			name:   "valid",
			mutate: func(p *Payment) {},
		},
		{
			name:        "missing tenant",
			mutate:      func(p *Payment) { p.TenantID = "" },
			expectedErr: ErrInvalidTenant,
		},
		{
			name:        "future date",
			mutate:      func(p *Payment) { p.PaymentDate = testNow.AddDate(0, 0, 1) },
			expectedErr: ErrInvalidDate,
		},
		{
			name:        "zero amount",
			mutate:      func(p *Payment) { p.Amount = decimal.Zero },
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "missing counterparty",
			mutate:      func(p *Payment) { p.CounterpartyID = " " },
			expectedErr: ErrInvalidPayment,
		},
		{
			name:        "unknown direction",
			mutate:      func(p *Payment) { p.Direction = "refund" },
			expectedErr: ErrInvalidPayment,
		},
		{
			name:        "missing bank account",
			mutate:      func(p *Payment) { p.BankAccountID = "" },
			expectedErr: ErrInvalidPayment,
		},
		{
			name:        "no targets",
			mutate:      func(p *Payment) { p.Allocations = nil },
			expectedErr: ErrNoAllocationTarget,
		},
		{
			name: "negative line",
			mutate: func(p *Payment) {
				p.Allocations = []AllocationLine{{InvoiceID: "inv-1", Amount: decimal.NewFromInt(-1)}}
			},
			expectedErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPayment(100)
			p.Allocations = []AllocationLine{{InvoiceID: "inv-1", Amount: decimal.NewFromInt(100)}}
			tt.mutate(p)

			err := p.Validate(testNow)
			if tt.expectedErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestPlanAllocation(t *testing.T) {
	invoices := map[string]*Invoice{
		"inv-1": {ID: "inv-1", TenantID: "acme", CounterpartyID: "cust-1", Number: "INV-1", OpenAmount: decimal.NewFromInt(300)},
		"inv-2": {ID: "inv-2", TenantID: "acme", CounterpartyID: "cust-1", Number: "INV-2", OpenAmount: decimal.NewFromInt(200)},
		"inv-x": {ID: "inv-x", TenantID: "acme", CounterpartyID: "cust-2", Number: "INV-X", OpenAmount: decimal.NewFromInt(200)},
	}
	notes := map[string]*AdjustmentNote{
		"cn-1": {ID: "cn-1", TenantID: "acme", CounterpartyID: "cust-1", Number: "CN-1", Kind: AdjustmentCredit, RemainingAmount: decimal.NewFromInt(50)},
	}

	tests := []struct {
		name            string
		amount          int64
		lines           []AllocationLine
		noteLines       []NoteLine
		wantUnallocated int64
		wantOpen        map[string]int64
		expectedErr     error
	}{
		{
			name:            "exact settle",
			amount:          300,
			lines:           []AllocationLine{{InvoiceID: "inv-1", Amount: decimal.NewFromInt(300)}},
			wantUnallocated: 0,
			wantOpen:        map[string]int64{"inv-1": 0},
		},
		{
			name:   "split across invoices and note with remainder",
			amount: 500,
			lines: []AllocationLine{
				{InvoiceID: "inv-1", Amount: decimal.NewFromInt(100)},
				{InvoiceID: "inv-2", Amount: decimal.NewFromInt(200)},
				{InvoiceID: "inv-1", Amount: decimal.NewFromInt(50)},
			},
			noteLines:       []NoteLine{{NoteID: "cn-1", Amount: decimal.NewFromInt(50)}},
			wantUnallocated: 100,
			wantOpen:        map[string]int64{"inv-1": 150, "inv-2": 0},
		},
		{
			name:        "exceeds open amount",
			amount:      500,
			lines:       []AllocationLine{{InvoiceID: "inv-1", Amount: decimal.NewFromInt(301)}},
			expectedErr: ErrOverAllocation,
		},
		{
			name:   "repeated lines exceed open amount",
			amount: 500,
			lines: []AllocationLine{
				{InvoiceID: "inv-2", Amount: decimal.NewFromInt(150)},
				{InvoiceID: "inv-2", Amount: decimal.NewFromInt(51)},
			},
			expectedErr: ErrOverAllocation,
		},
		{
			name:        "lines exceed payment",
			amount:      100,
			lines:       []AllocationLine{{InvoiceID: "inv-1", Amount: decimal.NewFromInt(150)}},
			expectedErr: ErrOverAllocation,
		},
		{
			name:        "foreign counterparty",
			amount:      100,
			lines:       []AllocationLine{{InvoiceID: "inv-x", Amount: decimal.NewFromInt(100)}},
			expectedErr: ErrCounterpartyMismatch,
		},
		{
			name:        "missing invoice",
			amount:      100,
			lines:       []AllocationLine{{InvoiceID: "nope", Amount: decimal.NewFromInt(100)}},
			expectedErr: ErrInvoiceNotFound,
		},
		{
			name:        "note over remaining",
			amount:      100,
			noteLines:   []NoteLine{{NoteID: "cn-1", Amount: decimal.NewFromInt(60)}},
			expectedErr: ErrOverAllocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPayment(tt.amount)
			p.Allocations = tt.lines
			p.Notes = tt.noteLines

			plan, err := PlanAllocation(p, invoices, notes)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !plan.Unallocated.Equal(decimal.NewFromInt(tt.wantUnallocated)) {
				t.Errorf("expected unallocated %d, got %s", tt.wantUnallocated, plan.Unallocated)
			}
			for _, inv := range plan.Invoices {
				if want := decimal.NewFromInt(tt.wantOpen[inv.ID]); !inv.OpenAmount.Equal(want) {
					t.Errorf("invoice %s: expected open %s, got %s", inv.ID, want, inv.OpenAmount)
				}
			}
		})
	}

	// Inputs are never mutated.
	if !invoices["inv-1"].OpenAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("source invoice mutated: %s", invoices["inv-1"].OpenAmount)
	}
	if !notes["cn-1"].RemainingAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("source note mutated: %s", notes["cn-1"].RemainingAmount)
	}
}

func TestPayment_Identifiers(t *testing.T) {
	p := testPayment(10)
	p.Allocations = []AllocationLine{{InvoiceID: "b"}, {InvoiceID: "a"}, {InvoiceID: "b"}}
	p.Notes = []NoteLine{{NoteID: "n"}, {NoteID: "n"}}

	if ids := p.InvoiceIDs(); len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("unexpected invoice ids %v", ids)
	}
	if ids := p.NoteIDs(); len(ids) != 1 {
		t.Errorf("unexpected note ids %v", ids)
	}
}
