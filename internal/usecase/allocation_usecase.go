package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

// AllocationUseCase distributes payments across invoices and credit or debit notes.
type AllocationUseCase struct {
	txManager   TransactionManager
	locker      TenantLocker
	paymentRepo PaymentRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	clock       Clock
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewAllocationUseCase creates a new AllocationUseCase.
func NewAllocationUseCase(
	txManager TransactionManager,
	locker TenantLocker,
	paymentRepo PaymentRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *AllocationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AllocationUseCase{
		txManager:   txManager,
		locker:      locker,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		clock:       clock,
		logger:      logger.With().Str("component", "allocation").Logger(),
		metrics:     metrics,
	}
}

// AllocationResult is the outcome of an allocation.
type AllocationResult struct {
	Payment  *domain.Payment
	Invoices []*domain.Invoice
	Notes    []*domain.AdjustmentNote
	// Credit is set when part of the payment was left unallocated.
	Credit *domain.OnAccountCredit
}

// Allocate applies a payment's lines in input order. Either every line applies
// and the payment is recorded, or nothing changes.
func (uc *AllocationUseCase) Allocate(ctx context.Context, payment domain.Payment) (*AllocationResult, error) {
	result, err := uc.allocate(ctx, payment)
	if err != nil {
		recordError(uc.metrics, "allocate", err)
		uc.logger.Warn().Err(err).
			Str("tenant_id", payment.TenantID).
			Str("counterparty_id", payment.CounterpartyID).
			Str("amount", payment.Amount.String()).
			Msg("payment allocation failed")
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PaymentsAllocated.WithLabelValues(string(result.Payment.Direction)).Inc()
		uc.metrics.AllocatedAmount.Observe(result.Payment.Amount.InexactFloat64())
		if result.Credit != nil {
			uc.metrics.OnAccountCredits.Inc()
		}
	}
	uc.logger.Info().
		Str("tenant_id", result.Payment.TenantID).
		Str("payment_id", result.Payment.ID).
		Str("amount", result.Payment.Amount.String()).
		Str("unallocated", result.Payment.UnallocatedAmount.String()).
		Int("invoices", len(result.Invoices)).
		Int("notes", len(result.Notes)).
		Msg("payment allocated")

	return result, nil
}

func (uc *AllocationUseCase) allocate(ctx context.Context, payment domain.Payment) (*AllocationResult, error) {
	now := uc.clock.Now()
	if err := payment.Validate(now); err != nil {
		return nil, err
	}

	total := payment.AllocatedTotal()
	if total.GreaterThan(payment.Amount) {
		return nil, fmt.Errorf("%w: lines total %s exceeds payment amount %s",
			domain.ErrOverAllocation, total, payment.Amount)
	}

	// Lock targets in sorted order (DEADLOCK PREVENTION)
	invoiceIDs := append([]string(nil), payment.InvoiceIDs()...)
	sort.Strings(invoiceIDs)
	noteIDs := append([]string(nil), payment.NoteIDs()...)
	sort.Strings(noteIDs)

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, domain.WrapDependency("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if uc.locker != nil {
		if err := uc.locker.LockTenant(txCtx, tx, payment.TenantID); err != nil {
			return nil, domain.WrapDependency("lock tenant", err)
		}
	}

	invoices := make(map[string]*domain.Invoice, len(invoiceIDs))
	if len(invoiceIDs) > 0 {
		loaded, err := uc.paymentRepo.GetInvoicesForUpdate(txCtx, tx, payment.TenantID, invoiceIDs)
		if err != nil {
			return nil, domain.WrapDependency("load invoices", err)
		}
		for _, inv := range loaded {
			invoices[inv.ID] = inv
		}
	}

	notes := make(map[string]*domain.AdjustmentNote, len(noteIDs))
	if len(noteIDs) > 0 {
		loaded, err := uc.paymentRepo.GetNotesForUpdate(txCtx, tx, payment.TenantID, noteIDs)
		if err != nil {
			return nil, domain.WrapDependency("load notes", err)
		}
		for _, n := range loaded {
			notes[n.ID] = n
		}
	}

	plan, err := domain.PlanAllocation(&payment, invoices, notes)
	if err != nil {
		return nil, err
	}

	for _, inv := range plan.Invoices {
		if err := uc.paymentRepo.UpdateInvoice(txCtx, tx, inv); err != nil {
			return nil, domain.WrapDependency("update invoice", err)
		}
	}
	for _, n := range plan.Notes {
		if err := uc.paymentRepo.UpdateNote(txCtx, tx, n); err != nil {
			return nil, domain.WrapDependency("update note", err)
		}
	}

	recorded := payment
	recorded.ID = uc.idGen.Generate()
	recorded.PaymentDate = domain.DateOnly(payment.PaymentDate)
	recorded.UnallocatedAmount = plan.Unallocated
	recorded.CreatedAt = now
	if err := uc.paymentRepo.CreatePayment(txCtx, tx, &recorded); err != nil {
		return nil, domain.WrapDependency("create payment", err)
	}

	var credit *domain.OnAccountCredit
	if plan.Unallocated.IsPositive() {
		credit = &domain.OnAccountCredit{
			ID:             uc.idGen.Generate(),
			TenantID:       recorded.TenantID,
			CounterpartyID: recorded.CounterpartyID,
			PaymentID:      recorded.ID,
			Amount:         plan.Unallocated,
			CreatedAt:      now,
		}
		if err := uc.paymentRepo.CreateOnAccountCredit(txCtx, tx, credit); err != nil {
			return nil, domain.WrapDependency("create on-account credit", err)
		}
	}

	event := newEvent(uc.idGen.Generate(), recorded.TenantID, recorded.ID, domain.AggregateTypePayment,
		domain.EventTypePaymentAllocated, map[string]any{
			"direction":       string(recorded.Direction),
			"counterparty_id": recorded.CounterpartyID,
			"amount":          recorded.Amount.String(),
			"allocated":       total.String(),
			"unallocated":     recorded.UnallocatedAmount.String(),
		}, now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, domain.WrapDependency("create outbox event", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, domain.WrapDependency("commit allocation", err)
	}

	return &AllocationResult{
		Payment:  &recorded,
		Invoices: plan.Invoices,
		Notes:    plan.Notes,
		Credit:   credit,
	}, nil
}
