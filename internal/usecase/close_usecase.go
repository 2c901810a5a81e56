package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

// CloseUseCase runs the year-end close.
type CloseUseCase struct {
	txManager    TransactionManager
	locker       TenantLocker
	generator    *Generator
	ledgerWriter LedgerWriter
	snapshotRepo SnapshotRepository
	closeRepo    CloseRepository
	outboxRepo   OutboxRepository
	idGen        IDGenerator
	clock        Clock
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// NewCloseUseCase creates a new CloseUseCase.
func NewCloseUseCase(
	txManager TransactionManager,
	locker TenantLocker,
	generator *Generator,
	ledgerWriter LedgerWriter,
	snapshotRepo SnapshotRepository,
	closeRepo CloseRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *CloseUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CloseUseCase{
		txManager:    txManager,
		locker:       locker,
		generator:    generator,
		ledgerWriter: ledgerWriter,
		snapshotRepo: snapshotRepo,
		closeRepo:    closeRepo,
		outboxRepo:   outboxRepo,
		idGen:        idGen,
		clock:        clock,
		logger:       logger.With().Str("component", "close").Logger(),
		metrics:      metrics,
	}
}

// CloseInput represents input for closing a financial year.
type CloseInput struct {
	TenantID      string
	FinancialYear string
	ClosingDate   time.Time
	// NextFinancialYear labels the opening snapshot. Derived from FinancialYear when empty.
	NextFinancialYear string
	Settings          domain.ReportingSettings
}

// CloseResult is everything produced by a year-end close.
type CloseResult struct {
	Close *domain.YearEndClose
	// ClosingSnapshot is the validated pre-close position. It is not stored.
	ClosingSnapshot *domain.BalanceSheetSnapshot
	OpeningSnapshot *domain.BalanceSheetSnapshot
	OpeningBalances []domain.OpeningBalance
}

// Close zeroes every revenue and expense account for the financial year, moves
// net income into retained earnings and seeds the next year's opening snapshot.
// The closing batch, opening snapshot and close record commit together.
func (uc *CloseUseCase) Close(ctx context.Context, input CloseInput) (*CloseResult, error) {
	start := time.Now()

	result, err := uc.close(ctx, input)
	if err != nil {
		recordError(uc.metrics, "close", err)
		uc.logger.Warn().Err(err).
			Str("tenant_id", input.TenantID).
			Str("financial_year", input.FinancialYear).
			Msg("year-end close failed")
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PeriodsClosed.Inc()
		uc.metrics.CloseDuration.Observe(time.Since(start).Seconds())
	}
	uc.logger.Info().
		Str("tenant_id", input.TenantID).
		Str("financial_year", result.Close.FinancialYear).
		Str("next_financial_year", result.Close.NextFinancialYear).
		Str("net_income", result.Close.NetIncome.String()).
		Str("opening_snapshot_id", result.OpeningSnapshot.ID).
		Msg("financial year closed")

	return result, nil
}

func (uc *CloseUseCase) close(ctx context.Context, input CloseInput) (*CloseResult, error) {
	if err := domain.ValidateTenantID(input.TenantID); err != nil {
		return nil, err
	}
	if err := domain.ValidateFinancialYear(input.FinancialYear); err != nil {
		return nil, err
	}
	if err := domain.ValidateAsOfDate(input.ClosingDate); err != nil {
		return nil, err
	}

	nextFY := input.NextFinancialYear
	if nextFY == "" {
		var err error
		if nextFY, err = domain.NextFinancialYear(input.FinancialYear); err != nil {
			return nil, err
		}
	} else if err := domain.ValidateFinancialYear(nextFY); err != nil {
		return nil, err
	}

	closingDate := domain.DateOnly(input.ClosingDate)
	openingDate := closingDate.AddDate(0, 0, 1)

	txCtx, cancel := context.WithTimeout(ctx, CloseTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, domain.WrapDependency("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Held until commit so no other close or allocation interleaves with the batch.
	if err := uc.locker.LockTenant(txCtx, tx, input.TenantID); err != nil {
		return nil, domain.WrapDependency("lock tenant", err)
	}

	existing, err := uc.closeRepo.Get(txCtx, tx, input.TenantID, input.FinancialYear)
	if err != nil {
		return nil, domain.WrapDependency("load close", err)
	}
	if existing != nil {
		return nil, domain.ErrPeriodAlreadyClosed
	}

	// A retry after the closing batch committed finds it here. Balances as of
	// the closing date already include it, so it is reversed out for the closing
	// position and the plan is rebuilt from the batch instead of re-planned.
	prior, err := uc.ledgerWriter.AppliedBatch(txCtx, tx, input.TenantID,
		domain.CloseIdempotencyKey(input.TenantID, input.FinancialYear))
	if err != nil {
		return nil, domain.WrapDependency("load closing batch", err)
	}

	// 1. Generate and validate the closing position.
	state, err := uc.generator.Load(txCtx, tx, input.TenantID, closingDate)
	if err != nil {
		return nil, err
	}
	closingState := state
	if prior != nil {
		closingState = &LedgerState{Chart: state.Chart, Raw: domain.WithoutBatch(state.Raw, prior.Batch)}
	}
	closing, err := uc.generator.Build(closingState, input.TenantID, closingDate, input.FinancialYear, input.Settings)
	if err != nil {
		return nil, err
	}
	if !closing.IsBalanced {
		return nil, fmt.Errorf("%w: assets %s, liabilities %s, equity %s", domain.ErrUnbalancedPeriod,
			closing.TotalAssets, closing.TotalLiabilities, closing.TotalEquity)
	}

	retained, ok := state.Chart.Get(input.Settings.RetainedEarningsAccountID)
	if !ok {
		return nil, fmt.Errorf("%w: retained earnings account %d", domain.ErrAccountNotFound,
			input.Settings.RetainedEarningsAccountID)
	}

	// 2-3. Net income and the closing batch.
	var (
		plan   *domain.ClosingPlan
		commit domain.CommitResult
	)
	if prior != nil {
		plan = domain.PlanFromApplied(state.Chart, state.Raw, prior.Batch)
		commit = prior.Result
		commit.AlreadyApplied = true
	} else {
		plan, err = domain.PlanClose(state.Chart, state.Raw, retained, input.TenantID, input.FinancialYear, closingDate)
		if err != nil {
			return nil, err
		}
		if len(plan.Batch.Postings) > 0 {
			commit, err = uc.ledgerWriter.ApplyBatch(txCtx, tx, plan.Batch)
			if err != nil {
				return nil, domain.WrapDependency("apply closing batch", err)
			}
		}
	}
	if commit.AlreadyApplied {
		uc.logger.Warn().
			Str("tenant_id", input.TenantID).
			Str("batch_id", commit.BatchID).
			Str("idempotency_key", plan.Batch.IdempotencyKey).
			Msg("closing batch already applied, recording close")
	}

	// 4. Opening balances from the post-close position.
	var opening []domain.OpeningBalance
	for _, a := range state.Chart.Active(domain.CategoryAsset, domain.CategoryLiability, domain.CategoryEquity) {
		amount := a.Normalize(plan.PostClose[a.ID])
		if amount.IsZero() && !input.Settings.IncludeZeroBalances {
			continue
		}
		opening = append(opening, domain.OpeningBalance{
			AccountID:     a.ID,
			FinancialYear: nextFY,
			Amount:        amount,
		})
	}

	// 5. Opening snapshot for the next year.
	now := uc.clock.Now()
	openingSnapshot, err := buildSnapshot(state.Chart, plan.PostClose, uc.idGen.Generate(),
		input.TenantID, openingDate, nextFY, input.Settings, now)
	if err != nil {
		return nil, err
	}
	openingSnapshot, err = uc.storeOpening(txCtx, tx, openingSnapshot)
	if err != nil {
		return nil, err
	}

	record := &domain.YearEndClose{
		ID:                uc.idGen.Generate(),
		TenantID:          input.TenantID,
		FinancialYear:     input.FinancialYear,
		NextFinancialYear: nextFY,
		ClosingDate:       closingDate,
		NetIncome:         plan.NetIncome,
		BatchID:           commit.BatchID,
		OpeningSnapshotID: openingSnapshot.ID,
		ClosedAt:          now,
	}
	if err := uc.closeRepo.Create(txCtx, tx, record, opening); err != nil {
		return nil, domain.WrapDependency("create close", err)
	}

	event := newEvent(uc.idGen.Generate(), input.TenantID, record.ID, domain.AggregateTypeClose,
		domain.EventTypePeriodClosed, map[string]any{
			"financial_year":      record.FinancialYear,
			"next_financial_year": record.NextFinancialYear,
			"closing_date":        closingDate.Format(domain.DateLayout),
			"net_income":          record.NetIncome.String(),
			"batch_id":            record.BatchID,
			"opening_snapshot_id": record.OpeningSnapshotID,
		}, now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, domain.WrapDependency("create outbox event", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, domain.WrapDependency("commit close", err)
	}

	return &CloseResult{
		Close:           record,
		ClosingSnapshot: closing,
		OpeningSnapshot: openingSnapshot,
		OpeningBalances: opening,
	}, nil
}

// storeOpening saves the opening snapshot, replacing a draft for the same date.
func (uc *CloseUseCase) storeOpening(ctx context.Context, tx Transaction, fresh *domain.BalanceSheetSnapshot) (*domain.BalanceSheetSnapshot, error) {
	existing, err := uc.snapshotRepo.GetByDateForUpdate(ctx, tx, fresh.TenantID, fresh.AsOfDate)
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		if err := uc.snapshotRepo.Create(ctx, tx, fresh); err != nil {
			return nil, domain.WrapDependency("create opening snapshot", err)
		}
		return fresh, nil
	case err != nil:
		return nil, domain.WrapDependency("load opening snapshot", err)
	case existing.IsFinalized():
		return nil, domain.ErrSnapshotAlreadyFinalized
	}

	expected := existing.Version
	if err := existing.ReplaceWith(fresh, uc.clock.Now()); err != nil {
		return nil, err
	}
	if err := uc.snapshotRepo.Update(ctx, tx, existing, expected); err != nil {
		return nil, domain.WrapDependency("update opening snapshot", err)
	}
	return existing, nil
}
