package postgres

import (
	"context"
	"fmt"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// PaymentRepository implements usecase.PaymentRepository.
type PaymentRepository struct {
	db querier
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db querier) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetInvoicesForUpdate locks the tenant's invoices among ids in id order.
// Unknown ids are skipped.
func (r *PaymentRepository) GetInvoicesForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Invoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q, err := inTx(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, counterparty_id, number, total_amount::text, open_amount::text, version
		FROM invoices
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		var (
			inv         domain.Invoice
			total, open string
		)
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.CounterpartyID, &inv.Number, &total, &open, &inv.Version); err != nil {
			return nil, err
		}
		if inv.TotalAmount, err = parseDecimal(total); err != nil {
			return nil, err
		}
		if inv.OpenAmount, err = parseDecimal(open); err != nil {
			return nil, err
		}
		invoices = append(invoices, &inv)
	}

	return invoices, rows.Err()
}

// GetNotesForUpdate locks the tenant's credit and debit notes among ids in id order.
func (r *PaymentRepository) GetNotesForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.AdjustmentNote, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q, err := inTx(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, counterparty_id, number, kind, total_amount::text, remaining_amount::text, version
		FROM adjustment_notes
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*domain.AdjustmentNote
	for rows.Next() {
		var (
			n                       domain.AdjustmentNote
			kind, total, remaining string
		)
		if err := rows.Scan(&n.ID, &n.TenantID, &n.CounterpartyID, &n.Number, &kind, &total, &remaining, &n.Version); err != nil {
			return nil, err
		}
		n.Kind = domain.AdjustmentKind(kind)
		if n.TotalAmount, err = parseDecimal(total); err != nil {
			return nil, err
		}
		if n.RemainingAmount, err = parseDecimal(remaining); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}

	return notes, rows.Err()
}

// UpdateInvoice stores a new open amount if the version is unchanged.
func (r *PaymentRepository) UpdateInvoice(ctx context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE invoices SET open_amount = $1, version = version + 1
		WHERE id = $2 AND tenant_id = $3 AND version = $4`,
		invoice.OpenAmount.String(), invoice.ID, invoice.TenantID, invoice.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %s", domain.ErrConcurrentModification, invoice.ID)
	}
	return nil
}

// UpdateNote stores a new remaining amount if the version is unchanged.
func (r *PaymentRepository) UpdateNote(ctx context.Context, tx usecase.Transaction, note *domain.AdjustmentNote) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE adjustment_notes SET remaining_amount = $1, version = version + 1
		WHERE id = $2 AND tenant_id = $3 AND version = $4`,
		note.RemainingAmount.String(), note.ID, note.TenantID, note.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: note %s", domain.ErrConcurrentModification, note.ID)
	}
	return nil
}

// CreatePayment records the payment and its lines in input order.
func (r *PaymentRepository) CreatePayment(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO payments (
			id, tenant_id, direction, payment_date, counterparty_id, bank_account_id,
			amount, unallocated_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.TenantID, string(payment.Direction), payment.PaymentDate,
		payment.CounterpartyID, payment.BankAccountID,
		payment.Amount.String(), payment.UnallocatedAmount.String(), payment.CreatedAt,
	); err != nil {
		return err
	}

	line := 0
	for _, a := range payment.Allocations {
		line++
		if _, err := q.Exec(ctx, `
			INSERT INTO payment_lines (payment_id, line_number, invoice_id, amount)
			VALUES ($1, $2, $3, $4)`,
			payment.ID, line, a.InvoiceID, a.Amount.String(),
		); err != nil {
			return err
		}
	}
	for _, n := range payment.Notes {
		line++
		if _, err := q.Exec(ctx, `
			INSERT INTO payment_lines (payment_id, line_number, note_id, amount)
			VALUES ($1, $2, $3, $4)`,
			payment.ID, line, n.NoteID, n.Amount.String(),
		); err != nil {
			return err
		}
	}

	return nil
}

// CreateOnAccountCredit records an unallocated remainder.
func (r *PaymentRepository) CreateOnAccountCredit(ctx context.Context, tx usecase.Transaction, credit *domain.OnAccountCredit) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO on_account_credits (id, tenant_id, counterparty_id, payment_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		credit.ID, credit.TenantID, credit.CounterpartyID, credit.PaymentID, credit.Amount.String(), credit.CreatedAt,
	)
	return err
}
