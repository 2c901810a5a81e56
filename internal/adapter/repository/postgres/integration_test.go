package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgerclose/internal/domain"
	infrapg "github.com/iho/ledgerclose/internal/infrastructure/postgres"
	"github.com/iho/ledgerclose/internal/usecase"
)

// newTestPool connects to DATABASE_URL and migrates it. Tests are skipped
// in -short mode or when no database is configured.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	require.NoError(t, infrapg.RunMigrations(dbURL, "../../../../migrations", zerolog.Nop()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)

	return pool
}

func truncateAll(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE TABLE outbox_events, on_account_credits, payment_lines, payments,
			adjustment_notes, invoices, opening_balances, year_end_closes, comparison_log,
			snapshot_notes, balance_sheet_items, balance_sheet_snapshots,
			ledger_lines, ledger_batches, accounts CASCADE`)
	require.NoError(t, err)
}

// seedLedger creates a small chart and one opening batch:
// cash 1000 against capital 600, revenue 500 and expense 100.
func seedLedger(t *testing.T, pool *pgxpool.Pool, tenantID string) {
	t.Helper()
	ctx := context.Background()

	accounts := []struct {
		id       int64
		code     string
		category string
		side     string
		sub      string
	}{
		{1000, "1000", "asset", "debit", "current"},
		{2000, "2000", "liability", "credit", "current"},
		{3000, "3000", "equity", "credit", "capital"},
		{3200, "3200", "equity", "credit", "retained_earnings"},
		{4000, "4000", "revenue", "credit", ""},
		{5000, "5000", "expense", "debit", ""},
	}
	for _, a := range accounts {
		_, err := pool.Exec(ctx,
			`INSERT INTO accounts (tenant_id, id, code, name, category, normal_balance, sub_category)
			 VALUES ($1, $2, $3, $3, $4, $5, $6)`,
			tenantID, a.id, a.code, a.category, a.side, a.sub)
		require.NoError(t, err)
	}

	txManager := NewTxManager(pool)
	tx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = NewLedgerRepository(pool).ApplyBatch(ctx, tx, domain.PostingBatch{
		IdempotencyKey: "seed:" + tenantID,
		TenantID:       tenantID,
		EffectiveDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:    "seed",
		Postings: []domain.Posting{
			{AccountID: 1000, Amount: decimal.NewFromInt(1000), Direction: domain.Debit},
			{AccountID: 5000, Amount: decimal.NewFromInt(100), Direction: domain.Debit},
			{AccountID: 3000, Amount: decimal.NewFromInt(600), Direction: domain.Credit},
			{AccountID: 4000, Amount: decimal.NewFromInt(500), Direction: domain.Credit},
		},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func TestIntegrationSnapshotLifecycle(t *testing.T) {
	pool := newTestPool(t)
	truncateAll(t, pool)
	seedLedger(t, pool, "t1")

	ctx := context.Background()
	ledger := NewLedgerRepository(pool)
	snapshots := NewSnapshotRepository(pool)
	idGen := NewULIDGenerator()
	generator := usecase.NewGenerator(ledger, ledger, idGen, nil)
	uc := usecase.NewSnapshotUseCase(NewTxManager(pool), generator, snapshots, NewOutboxRepository(pool),
		idGen, nil, zerolog.Nop(), nil)

	asOf := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	snap, err := uc.Generate(ctx, usecase.GenerateSnapshotInput{TenantID: "t1", AsOfDate: asOf, FinancialYear: "2024"})
	require.NoError(t, err)
	assert.True(t, snap.IsBalanced)
	assert.True(t, snap.TotalAssets.Equal(decimal.NewFromInt(1000)))
	assert.True(t, snap.CurrentEarnings.Equal(decimal.NewFromInt(400)))

	// Regenerating a draft for the same date replaces it in place.
	again, err := uc.Generate(ctx, usecase.GenerateSnapshotInput{TenantID: "t1", AsOfDate: asOf, FinancialYear: "2024"})
	require.NoError(t, err)
	assert.Equal(t, snap.ID, again.ID)

	note, err := uc.AddNote(ctx, "t1", snap.ID, "Basis", "Historical cost")
	require.NoError(t, err)
	assert.Equal(t, 1, note.NoteNumber)

	finalized, err := uc.Finalize(ctx, "t1", snap.ID)
	require.NoError(t, err)
	assert.True(t, finalized.IsFinalized())

	err = uc.Delete(ctx, "t1", snap.ID)
	assert.ErrorIs(t, err, domain.ErrSnapshotAlreadyFinalized)

	loaded, err := uc.GetByDate(ctx, "t1", asOf)
	require.NoError(t, err)
	assert.Len(t, loaded.Notes, 1)

	unpublished, err := NewOutboxRepository(pool).GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, unpublished)
}

func TestIntegrationYearEndClose(t *testing.T) {
	pool := newTestPool(t)
	truncateAll(t, pool)
	seedLedger(t, pool, "t1")

	ctx := context.Background()
	ledger := NewLedgerRepository(pool)
	idGen := NewULIDGenerator()
	generator := usecase.NewGenerator(ledger, ledger, idGen, nil)
	closes := NewCloseRepository(pool)
	uc := usecase.NewCloseUseCase(NewTxManager(pool), ledger, generator, ledger, NewSnapshotRepository(pool),
		closes, NewOutboxRepository(pool), idGen, nil, zerolog.Nop(), nil)

	input := usecase.CloseInput{
		TenantID:      "t1",
		FinancialYear: "2024",
		ClosingDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Settings:      domain.ReportingSettings{RetainedEarningsAccountID: 3200},
	}

	result, err := uc.Close(ctx, input)
	require.NoError(t, err)
	assert.True(t, result.Close.NetIncome.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, "2025", result.Close.NextFinancialYear)
	assert.True(t, result.OpeningSnapshot.IsBalanced)

	balances, err := ledger.Balances(ctx, nil, "t1", []int64{3200, 4000, 5000}, input.ClosingDate)
	require.NoError(t, err)
	assert.True(t, balances[3200].Equal(decimal.NewFromInt(-400)))
	assert.True(t, balances[4000].IsZero())
	assert.True(t, balances[5000].IsZero())

	opening, err := closes.OpeningBalances(ctx, "t1", "2025")
	require.NoError(t, err)
	assert.NotEmpty(t, opening)

	_, err = uc.Close(ctx, input)
	assert.ErrorIs(t, err, domain.ErrPeriodAlreadyClosed)
}
