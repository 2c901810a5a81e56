package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

// SnapshotUseCase handles balance sheet snapshot generation and lifecycle.
type SnapshotUseCase struct {
	txManager    TransactionManager
	generator    *Generator
	snapshotRepo SnapshotRepository
	outboxRepo   OutboxRepository
	idGen        IDGenerator
	clock        Clock
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// NewSnapshotUseCase creates a new SnapshotUseCase.
func NewSnapshotUseCase(
	txManager TransactionManager,
	generator *Generator,
	snapshotRepo SnapshotRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *SnapshotUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SnapshotUseCase{
		txManager:    txManager,
		generator:    generator,
		snapshotRepo: snapshotRepo,
		outboxRepo:   outboxRepo,
		idGen:        idGen,
		clock:        clock,
		logger:       logger.With().Str("component", "snapshot").Logger(),
		metrics:      metrics,
	}
}

// GenerateSnapshotInput represents input for generating a snapshot.
type GenerateSnapshotInput struct {
	TenantID      string
	AsOfDate      time.Time
	FinancialYear string
	Settings      domain.ReportingSettings
}

// Generate builds a snapshot from current ledger balances and stores it as a draft.
// An existing draft for the same date is replaced in place; a finalized one is never touched.
func (uc *SnapshotUseCase) Generate(ctx context.Context, input GenerateSnapshotInput) (*domain.BalanceSheetSnapshot, error) {
	snapshot, err := uc.generate(ctx, input)
	if err != nil {
		recordError(uc.metrics, "generate_snapshot", err)
		uc.logger.Warn().Err(err).
			Str("tenant_id", input.TenantID).
			Time("as_of_date", input.AsOfDate).
			Msg("snapshot generation failed")
		return nil, err
	}
	return snapshot, nil
}

func (uc *SnapshotUseCase) generate(ctx context.Context, input GenerateSnapshotInput) (*domain.BalanceSheetSnapshot, error) {
	if err := domain.ValidateTenantID(input.TenantID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAsOfDate(input.AsOfDate); err != nil {
		return nil, err
	}
	if err := domain.ValidateFinancialYear(input.FinancialYear); err != nil {
		return nil, err
	}

	start := time.Now()
	asOf := domain.DateOnly(input.AsOfDate)

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, domain.WrapDependency("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	fresh, _, err := uc.generator.Generate(txCtx, tx, input.TenantID, asOf, input.FinancialYear, input.Settings)
	if err != nil {
		return nil, err
	}

	result := fresh
	existing, err := uc.snapshotRepo.GetByDateForUpdate(txCtx, tx, input.TenantID, asOf)
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		if err := uc.snapshotRepo.Create(txCtx, tx, fresh); err != nil {
			return nil, domain.WrapDependency("create snapshot", err)
		}
	case err != nil:
		return nil, domain.WrapDependency("load snapshot", err)
	case existing.IsFinalized():
		return nil, domain.ErrSnapshotAlreadyFinalized
	default:
		expected := existing.Version
		if err := existing.ReplaceWith(fresh, uc.clock.Now()); err != nil {
			return nil, err
		}
		if err := uc.snapshotRepo.Update(txCtx, tx, existing, expected); err != nil {
			return nil, domain.WrapDependency("update snapshot", err)
		}
		result = existing
	}

	event := newEvent(uc.idGen.Generate(), result.TenantID, result.ID, domain.AggregateTypeSnapshot,
		domain.EventTypeSnapshotGenerated, map[string]any{
			"as_of_date":        result.AsOfDate.Format(domain.DateLayout),
			"financial_year":    result.FinancialYear,
			"total_assets":      result.TotalAssets.String(),
			"total_liabilities": result.TotalLiabilities.String(),
			"total_equity":      result.TotalEquity.String(),
			"is_balanced":       result.IsBalanced,
			"version":           result.Version,
		}, uc.clock.Now())
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, domain.WrapDependency("create outbox event", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, domain.WrapDependency("commit snapshot", err)
	}

	if uc.metrics != nil {
		uc.metrics.SnapshotsGenerated.WithLabelValues(strconv.FormatBool(result.IsBalanced)).Inc()
		uc.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}

	ev := uc.logger.Info()
	if !result.IsBalanced {
		ev = uc.logger.Warn()
	}
	ev.Str("tenant_id", result.TenantID).
		Str("snapshot_id", result.ID).
		Str("as_of_date", result.AsOfDate.Format(domain.DateLayout)).
		Bool("is_balanced", result.IsBalanced).
		Int64("version", result.Version).
		Msg("snapshot generated")

	return result, nil
}

// Get retrieves a snapshot by ID.
func (uc *SnapshotUseCase) Get(ctx context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	snapshot, err := uc.snapshotRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, domain.WrapDependency("load snapshot", err)
	}
	return snapshot, nil
}

// GetByDate retrieves the tenant's snapshot for a date.
func (uc *SnapshotUseCase) GetByDate(ctx context.Context, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAsOfDate(asOf); err != nil {
		return nil, err
	}
	snapshot, err := uc.snapshotRepo.GetByDate(ctx, tenantID, asOf)
	if err != nil {
		return nil, domain.WrapDependency("load snapshot", err)
	}
	return snapshot, nil
}

// List retrieves a tenant's snapshots, newest date first.
func (uc *SnapshotUseCase) List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.BalanceSheetSnapshot, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	limit, offset = domain.ValidatePagination(limit, offset)
	snapshots, err := uc.snapshotRepo.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, domain.WrapDependency("list snapshots", err)
	}
	return snapshots, nil
}

// Finalize locks a balanced draft so that its figures can no longer change.
func (uc *SnapshotUseCase) Finalize(ctx context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error) {
	snapshot, err := uc.mutate(ctx, tenantID, id, func(s *domain.BalanceSheetSnapshot, now time.Time) error {
		return s.Finalize(now)
	}, domain.EventTypeSnapshotFinalized)
	if err != nil {
		recordError(uc.metrics, "finalize_snapshot", err)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.SnapshotsFinalized.Inc()
	}
	uc.logger.Info().
		Str("tenant_id", tenantID).
		Str("snapshot_id", id).
		Msg("snapshot finalized")

	return snapshot, nil
}

// Delete removes a draft snapshot. Finalized snapshots cannot be deleted.
func (uc *SnapshotUseCase) Delete(ctx context.Context, tenantID, id string) error {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return domain.WrapDependency("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	snapshot, err := uc.snapshotRepo.GetByIDForUpdate(txCtx, tx, tenantID, id)
	if err != nil {
		return domain.WrapDependency("load snapshot", err)
	}

	if err := snapshot.CanDelete(); err != nil {
		recordError(uc.metrics, "delete_snapshot", err)
		return err
	}

	if err := uc.snapshotRepo.Delete(txCtx, tx, tenantID, id); err != nil {
		return domain.WrapDependency("delete snapshot", err)
	}

	event := newEvent(uc.idGen.Generate(), tenantID, id, domain.AggregateTypeSnapshot,
		domain.EventTypeSnapshotDeleted, map[string]any{
			"as_of_date": snapshot.AsOfDate.Format(domain.DateLayout),
		}, uc.clock.Now())
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return domain.WrapDependency("create outbox event", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return domain.WrapDependency("commit delete", err)
	}

	if uc.metrics != nil {
		uc.metrics.SnapshotsDeleted.Inc()
	}
	uc.logger.Info().
		Str("tenant_id", tenantID).
		Str("snapshot_id", id).
		Msg("snapshot deleted")

	return nil
}

// AddNote appends a numbered note to a snapshot of any status.
func (uc *SnapshotUseCase) AddNote(ctx context.Context, tenantID, id, title, content string) (*domain.Note, error) {
	var added domain.Note
	_, err := uc.mutate(ctx, tenantID, id, func(s *domain.BalanceSheetSnapshot, now time.Time) error {
		n, err := s.AddNote(title, content, now)
		if err != nil {
			return err
		}
		added = n
		return nil
	}, "")
	if err != nil {
		recordError(uc.metrics, "add_note", err)
		return nil, err
	}
	return &added, nil
}

// DeleteNote removes a note by number. Other notes keep their numbers.
func (uc *SnapshotUseCase) DeleteNote(ctx context.Context, tenantID, id string, number int) error {
	_, err := uc.mutate(ctx, tenantID, id, func(s *domain.BalanceSheetSnapshot, _ time.Time) error {
		return s.RemoveNote(number)
	}, "")
	if err != nil {
		recordError(uc.metrics, "delete_note", err)
		return err
	}
	return nil
}

// mutate applies fn to a locked snapshot and stores it under optimistic versioning.
// A non-empty eventType is recorded in the outbox in the same transaction.
func (uc *SnapshotUseCase) mutate(
	ctx context.Context,
	tenantID, id string,
	fn func(s *domain.BalanceSheetSnapshot, now time.Time) error,
	eventType string,
) (*domain.BalanceSheetSnapshot, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, domain.WrapDependency("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	snapshot, err := uc.snapshotRepo.GetByIDForUpdate(txCtx, tx, tenantID, id)
	if err != nil {
		return nil, domain.WrapDependency("load snapshot", err)
	}

	now := uc.clock.Now()
	expected := snapshot.Version
	if err := fn(snapshot, now); err != nil {
		return nil, err
	}
	snapshot.Version = expected + 1
	snapshot.UpdatedAt = now

	if err := uc.snapshotRepo.Update(txCtx, tx, snapshot, expected); err != nil {
		return nil, domain.WrapDependency("update snapshot", err)
	}

	if eventType != "" {
		event := newEvent(uc.idGen.Generate(), tenantID, id, domain.AggregateTypeSnapshot, eventType,
			map[string]any{
				"as_of_date":     snapshot.AsOfDate.Format(domain.DateLayout),
				"financial_year": snapshot.FinancialYear,
				"status":         string(snapshot.Status),
			}, now)
		if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
			return nil, domain.WrapDependency("create outbox event", err)
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, domain.WrapDependency("commit snapshot", err)
	}

	return snapshot, nil
}
