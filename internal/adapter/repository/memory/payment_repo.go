package memory

import (
	"context"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// PaymentRepository implements usecase.PaymentRepository.
type PaymentRepository struct {
	store *Store
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(store *Store) *PaymentRepository {
	return &PaymentRepository{store: store}
}

// AddInvoice registers an open invoice.
func (r *PaymentRepository) AddInvoice(invoice *domain.Invoice) {
	_ = r.store.write(nil, func(st *state) error {
		cp := *invoice
		st.invoices[invoice.ID] = &cp
		return nil
	})
}

// AddNote registers a credit or debit note.
func (r *PaymentRepository) AddNote(note *domain.AdjustmentNote) {
	_ = r.store.write(nil, func(st *state) error {
		cp := *note
		st.notes[note.ID] = &cp
		return nil
	})
}

// GetInvoicesForUpdate returns the tenant's invoices among ids. Unknown ids are skipped.
func (r *PaymentRepository) GetInvoicesForUpdate(_ context.Context, _ usecase.Transaction, tenantID string, ids []string) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	err := r.store.read(func(st *state) error {
		for _, id := range ids {
			if inv, ok := st.invoices[id]; ok && inv.TenantID == tenantID {
				cp := *inv
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

// GetNotesForUpdate returns the tenant's notes among ids. Unknown ids are skipped.
func (r *PaymentRepository) GetNotesForUpdate(_ context.Context, _ usecase.Transaction, tenantID string, ids []string) ([]*domain.AdjustmentNote, error) {
	var out []*domain.AdjustmentNote
	err := r.store.read(func(st *state) error {
		for _, id := range ids {
			if n, ok := st.notes[id]; ok && n.TenantID == tenantID {
				cp := *n
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

// GetInvoice returns an invoice by ID.
func (r *PaymentRepository) GetInvoice(_ context.Context, tenantID, id string) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.store.read(func(st *state) error {
		inv, ok := st.invoices[id]
		if !ok || inv.TenantID != tenantID {
			return domain.ErrInvoiceNotFound
		}
		cp := *inv
		out = &cp
		return nil
	})
	return out, err
}

// UpdateInvoice stores a new open amount and bumps the version.
func (r *PaymentRepository) UpdateInvoice(_ context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	return r.store.write(tx, func(st *state) error {
		current, ok := st.invoices[invoice.ID]
		if !ok {
			return domain.ErrInvoiceNotFound
		}
		if current.Version != invoice.Version {
			return domain.ErrConcurrentModification
		}
		cp := *invoice
		cp.Version++
		st.invoices[invoice.ID] = &cp
		return nil
	})
}

// UpdateNote stores a new remaining amount and bumps the version.
func (r *PaymentRepository) UpdateNote(_ context.Context, tx usecase.Transaction, note *domain.AdjustmentNote) error {
	return r.store.write(tx, func(st *state) error {
		current, ok := st.notes[note.ID]
		if !ok {
			return domain.ErrAdjustmentNotFound
		}
		if current.Version != note.Version {
			return domain.ErrConcurrentModification
		}
		cp := *note
		cp.Version++
		st.notes[note.ID] = &cp
		return nil
	})
}

// CreatePayment records a payment.
func (r *PaymentRepository) CreatePayment(_ context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	return r.store.write(tx, func(st *state) error {
		cp := *payment
		cp.Allocations = append([]domain.AllocationLine(nil), payment.Allocations...)
		cp.Notes = append([]domain.NoteLine(nil), payment.Notes...)
		st.payments[payment.ID] = &cp
		return nil
	})
}

// CreateOnAccountCredit records an unallocated remainder.
func (r *PaymentRepository) CreateOnAccountCredit(_ context.Context, tx usecase.Transaction, credit *domain.OnAccountCredit) error {
	return r.store.write(tx, func(st *state) error {
		cp := *credit
		st.credits = append(st.credits, &cp)
		return nil
	})
}

// Credits returns the counterparty's on-account credits.
func (r *PaymentRepository) Credits(_ context.Context, tenantID, counterpartyID string) ([]*domain.OnAccountCredit, error) {
	var out []*domain.OnAccountCredit
	err := r.store.read(func(st *state) error {
		for _, c := range st.credits {
			if c.TenantID == tenantID && c.CounterpartyID == counterpartyID {
				cp := *c
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

// PaymentCount returns the number of recorded payments.
func (r *PaymentRepository) PaymentCount() int {
	n := 0
	_ = r.store.read(func(st *state) error {
		n = len(st.payments)
		return nil
	})
	return n
}
