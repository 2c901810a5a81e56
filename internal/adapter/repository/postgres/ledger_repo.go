package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

const pgErrForeignKeyViolation = "23503"

// LedgerRepository reads the chart of accounts and journal lines, and applies
// posting batches. It implements usecase.AccountDirectory, usecase.LedgerReader,
// usecase.LedgerWriter and usecase.TenantLocker.
type LedgerRepository struct {
	db querier
}

// NewLedgerRepository creates a new LedgerRepository. db is usually a *pgxpool.Pool.
func NewLedgerRepository(db querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const selectAccounts = `
SELECT id, code, name, category, normal_balance, sub_category, parent_account_id, is_active
FROM accounts
WHERE tenant_id = $1
ORDER BY code`

// reader returns tx's querier, or the pool when tx is nil.
func (r *LedgerRepository) reader(tx usecase.Transaction) (querier, error) {
	if tx == nil {
		return r.db, nil
	}
	return inTx(tx)
}

// Accounts returns the tenant's chart of accounts ordered by code.
func (r *LedgerRepository) Accounts(ctx context.Context, tx usecase.Transaction, tenantID string) ([]*domain.Account, error) {
	q, err := r.reader(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, selectAccounts, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var (
			a              domain.Account
			category, side string
		)
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &category, &side, &a.SubCategory, &a.ParentAccountID, &a.IsActive); err != nil {
			return nil, err
		}
		a.TenantID = tenantID
		a.Category = domain.Category(category)
		a.NormalBalance = domain.NormalBalance(side)
		accounts = append(accounts, &a)
	}

	return accounts, rows.Err()
}

const selectBalances = `
SELECT account_id, SUM(amount)::text
FROM ledger_lines
WHERE tenant_id = $1 AND account_id = ANY($2) AND entry_date <= $3
GROUP BY account_id`

// Balances sums debit-positive journal lines up to and including asOf.
func (r *LedgerRepository) Balances(ctx context.Context, tx usecase.Transaction, tenantID string, accountIDs []int64, asOf time.Time) (map[int64]decimal.Decimal, error) {
	q, err := r.reader(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, selectBalances, tenantID, accountIDs, domain.DateOnly(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[int64]decimal.Decimal, len(accountIDs))
	for rows.Next() {
		var (
			id  int64
			sum string
		)
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		d, err := parseDecimal(sum)
		if err != nil {
			return nil, err
		}
		balances[id] = d
	}

	return balances, rows.Err()
}

// ApplyBatch writes the batch and its lines inside tx. A batch whose
// idempotency key was already committed is reported, not re-applied.
func (r *LedgerRepository) ApplyBatch(ctx context.Context, tx usecase.Transaction, batch domain.PostingBatch) (domain.CommitResult, error) {
	if err := batch.Validate(); err != nil {
		return domain.CommitResult{}, err
	}

	q, err := inTx(tx)
	if err != nil {
		return domain.CommitResult{}, err
	}

	if batch.IdempotencyKey != "" {
		var prev domain.CommitResult
		err := q.QueryRow(ctx,
			`SELECT id, applied_at FROM ledger_batches WHERE tenant_id = $1 AND idempotency_key = $2`,
			batch.TenantID, batch.IdempotencyKey,
		).Scan(&prev.BatchID, &prev.AppliedAt)
		switch {
		case err == nil:
			prev.AlreadyApplied = true
			return prev, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return domain.CommitResult{}, err
		}
	}

	var key *string
	if batch.IdempotencyKey != "" {
		key = &batch.IdempotencyKey
	}

	result := domain.CommitResult{
		BatchID:   ulid.Make().String(),
		AppliedAt: time.Now().UTC(),
	}
	effective := domain.DateOnly(batch.EffectiveDate)

	if _, err := q.Exec(ctx,
		`INSERT INTO ledger_batches (id, tenant_id, idempotency_key, effective_date, description, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.BatchID, batch.TenantID, key, effective, batch.Description, result.AppliedAt,
	); err != nil {
		return domain.CommitResult{}, err
	}

	for _, p := range batch.Postings {
		if _, err := q.Exec(ctx,
			`INSERT INTO ledger_lines (batch_id, tenant_id, account_id, entry_date, amount)
			 VALUES ($1, $2, $3, $4, $5)`,
			result.BatchID, batch.TenantID, p.AccountID, effective, p.RawEffect().String(),
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgErrForeignKeyViolation {
				return domain.CommitResult{}, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, p.AccountID)
			}
			return domain.CommitResult{}, err
		}
	}

	return result, nil
}

const selectAppliedBatch = `
SELECT id, effective_date, description, applied_at
FROM ledger_batches
WHERE tenant_id = $1 AND idempotency_key = $2`

const selectBatchLines = `
SELECT account_id, amount::text
FROM ledger_lines
WHERE batch_id = $1
ORDER BY id`

// AppliedBatch loads the batch committed under idempotencyKey, or nil when
// there is none.
func (r *LedgerRepository) AppliedBatch(ctx context.Context, tx usecase.Transaction, tenantID, idempotencyKey string) (*domain.AppliedBatch, error) {
	q, err := r.reader(tx)
	if err != nil {
		return nil, err
	}

	applied := domain.AppliedBatch{
		Batch: domain.PostingBatch{IdempotencyKey: idempotencyKey, TenantID: tenantID},
	}
	err = q.QueryRow(ctx, selectAppliedBatch, tenantID, idempotencyKey).Scan(
		&applied.Result.BatchID, &applied.Batch.EffectiveDate, &applied.Batch.Description, &applied.Result.AppliedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, selectBatchLines, applied.Result.BatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			amount string
		)
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		d, err := parseDecimal(amount)
		if err != nil {
			return nil, err
		}
		p := domain.Posting{AccountID: id, Amount: d.Abs(), Direction: domain.Debit}
		if d.IsNegative() {
			p.Direction = domain.Credit
		}
		applied.Batch.Postings = append(applied.Batch.Postings, p)
	}

	return &applied, rows.Err()
}

// LockTenant takes a transaction-scoped advisory lock on the tenant.
func (r *LedgerRepository) LockTenant(ctx context.Context, tx usecase.Transaction, tenantID string) error {
	if tenantID == "" {
		return domain.ErrInvalidTenant
	}

	q, err := inTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID)
	return err
}
