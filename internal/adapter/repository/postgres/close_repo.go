package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// CloseRepository implements usecase.CloseRepository.
type CloseRepository struct {
	db querier
}

// NewCloseRepository creates a new CloseRepository.
func NewCloseRepository(db querier) *CloseRepository {
	return &CloseRepository{db: db}
}

// Get returns the close of a financial year, or nil when it has not been closed.
func (r *CloseRepository) Get(ctx context.Context, tx usecase.Transaction, tenantID, financialYear string) (*domain.YearEndClose, error) {
	q, err := inTx(tx)
	if err != nil {
		return nil, err
	}

	var (
		c         domain.YearEndClose
		netIncome string
	)
	err = q.QueryRow(ctx, `
		SELECT id, tenant_id, financial_year, next_financial_year, closing_date,
		       net_income::text, batch_id, opening_snapshot_id, closed_at
		FROM year_end_closes
		WHERE tenant_id = $1 AND financial_year = $2`,
		tenantID, financialYear,
	).Scan(&c.ID, &c.TenantID, &c.FinancialYear, &c.NextFinancialYear, &c.ClosingDate,
		&netIncome, &c.BatchID, &c.OpeningSnapshotID, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if c.NetIncome, err = parseDecimal(netIncome); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create records a close and the opening balances it carries forward.
func (r *CloseRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.YearEndClose, opening []domain.OpeningBalance) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO year_end_closes (
			id, tenant_id, financial_year, next_financial_year, closing_date,
			net_income, batch_id, opening_snapshot_id, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.TenantID, record.FinancialYear, record.NextFinancialYear, record.ClosingDate,
		record.NetIncome.String(), record.BatchID, record.OpeningSnapshotID, record.ClosedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPeriodAlreadyClosed
		}
		return err
	}

	for _, ob := range opening {
		if _, err := q.Exec(ctx, `
			INSERT INTO opening_balances (tenant_id, financial_year, account_id, amount)
			VALUES ($1, $2, $3, $4)`,
			record.TenantID, ob.FinancialYear, ob.AccountID, ob.Amount.String(),
		); err != nil {
			return err
		}
	}

	return nil
}

// OpeningBalances returns the balances a close carried into financialYear.
func (r *CloseRepository) OpeningBalances(ctx context.Context, tenantID, financialYear string) ([]domain.OpeningBalance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT account_id, amount::text
		FROM opening_balances
		WHERE tenant_id = $1 AND financial_year = $2
		ORDER BY account_id`, tenantID, financialYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OpeningBalance
	for rows.Next() {
		var (
			ob     = domain.OpeningBalance{FinancialYear: financialYear}
			amount string
		)
		if err := rows.Scan(&ob.AccountID, &amount); err != nil {
			return nil, err
		}
		if ob.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		out = append(out, ob)
	}

	return out, rows.Err()
}
