package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
)

// LedgerUseCase handles ledger-wide checks.
type LedgerUseCase struct {
	directory AccountDirectory
	ledger    LedgerReader
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(directory AccountDirectory, ledger LedgerReader) *LedgerUseCase {
	return &LedgerUseCase{
		directory: directory,
		ledger:    ledger,
	}
}

// TrialBalanceLine is one account's raw balance split by side.
type TrialBalanceLine struct {
	AccountID   int64
	AccountCode string
	AccountName string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// TrialBalance sums every account of a tenant, active or not.
type TrialBalance struct {
	TenantID     string
	AsOfDate     time.Time
	Lines        []TrialBalanceLine
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	IsBalanced   bool
}

// TrialBalance verifies that debits equal credits across the whole ledger as of a date.
// Unlike a snapshot it includes inactive and income statement accounts.
func (uc *LedgerUseCase) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) (*TrialBalance, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAsOfDate(asOf); err != nil {
		return nil, err
	}
	asOf = domain.DateOnly(asOf)

	accounts, err := uc.directory.Accounts(ctx, nil, tenantID)
	if err != nil {
		return nil, domain.WrapDependency("load accounts", err)
	}
	chart, err := domain.NewChart(accounts)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	raw, err := uc.ledger.Balances(ctx, nil, tenantID, ids, asOf)
	if err != nil {
		return nil, domain.WrapDependency("load balances", err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNoLedgerData
	}

	tb := &TrialBalance{
		TenantID:     tenantID,
		AsOfDate:     asOf,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for _, a := range chart.Active(domain.CategoryAsset, domain.CategoryLiability, domain.CategoryEquity,
		domain.CategoryRevenue, domain.CategoryExpense) {
		tb.add(a, raw[a.ID])
	}
	for _, a := range accounts {
		if !a.IsActive {
			tb.add(a, raw[a.ID])
		}
	}

	tb.IsBalanced = tb.TotalDebits.Equal(tb.TotalCredits)
	return tb, nil
}

func (tb *TrialBalance) add(a *domain.Account, bal decimal.Decimal) {
	if bal.IsZero() {
		return
	}
	line := TrialBalanceLine{
		AccountID:   a.ID,
		AccountCode: a.Code,
		AccountName: a.Name,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
	}
	if bal.IsPositive() {
		line.Debit = bal
		tb.TotalDebits = tb.TotalDebits.Add(bal)
	} else {
		line.Credit = bal.Neg()
		tb.TotalCredits = tb.TotalCredits.Add(line.Credit)
	}
	tb.Lines = append(tb.Lines, line)
}
