package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
)

// Generator derives balance sheet snapshots from the ledger read port.
// It does not persist anything.
type Generator struct {
	directory AccountDirectory
	ledger    LedgerReader
	idGen     IDGenerator
	clock     Clock
}

// NewGenerator creates a new Generator.
func NewGenerator(directory AccountDirectory, ledger LedgerReader, idGen IDGenerator, clock Clock) *Generator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Generator{
		directory: directory,
		ledger:    ledger,
		idGen:     idGen,
		clock:     clock,
	}
}

// LedgerState is everything read from the ports for one date.
type LedgerState struct {
	Chart *domain.Chart
	// Raw holds debit-positive balances; accounts without activity are absent.
	Raw map[int64]decimal.Decimal
}

// Load reads the chart and every active account's balance as of asOf within tx.
func (g *Generator) Load(ctx context.Context, tx Transaction, tenantID string, asOf time.Time) (*LedgerState, error) {
	accounts, err := g.directory.Accounts(ctx, tx, tenantID)
	if err != nil {
		return nil, domain.WrapDependency("load accounts", err)
	}

	chart, err := domain.NewChart(accounts)
	if err != nil {
		return nil, err
	}

	active := chart.Active(domain.CategoryAsset, domain.CategoryLiability, domain.CategoryEquity,
		domain.CategoryRevenue, domain.CategoryExpense)
	if len(active) == 0 {
		return nil, domain.ErrNoLedgerData
	}

	ids := make([]int64, len(active))
	for i, a := range active {
		ids[i] = a.ID
	}

	raw, err := g.ledger.Balances(ctx, tx, tenantID, ids, domain.DateOnly(asOf))
	if err != nil {
		return nil, domain.WrapDependency("load balances", err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNoLedgerData
	}

	return &LedgerState{Chart: chart, Raw: raw}, nil
}

// Build classifies every balance sheet account and assembles a validated draft.
func (g *Generator) Build(state *LedgerState, tenantID string, asOf time.Time, financialYear string, settings domain.ReportingSettings) (*domain.BalanceSheetSnapshot, error) {
	return buildSnapshot(state.Chart, state.Raw, g.idGen.Generate(), tenantID, asOf, financialYear, settings, g.clock.Now())
}

// Generate loads the ledger and builds a draft snapshot.
func (g *Generator) Generate(ctx context.Context, tx Transaction, tenantID string, asOf time.Time, financialYear string, settings domain.ReportingSettings) (*domain.BalanceSheetSnapshot, *LedgerState, error) {
	state, err := g.Load(ctx, tx, tenantID, asOf)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := g.Build(state, tenantID, asOf, financialYear, settings)
	if err != nil {
		return nil, nil, err
	}

	return snapshot, state, nil
}

func buildSnapshot(chart *domain.Chart, raw map[int64]decimal.Decimal, id, tenantID string, asOf time.Time, financialYear string, settings domain.ReportingSettings, now time.Time) (*domain.BalanceSheetSnapshot, error) {
	var items []domain.BalanceSheetItem
	for _, a := range chart.Active(domain.CategoryAsset, domain.CategoryLiability, domain.CategoryEquity) {
		section, sub, err := domain.Classify(chart, a)
		if err != nil {
			return nil, err
		}

		amount := a.Normalize(raw[a.ID])
		if amount.IsZero() && !settings.IncludeZeroBalances {
			continue
		}

		items = append(items, domain.BalanceSheetItem{
			AccountID:   a.ID,
			AccountCode: a.Code,
			AccountName: a.Name,
			SectionType: section,
			SubSection:  sub,
			Amount:      amount,
		})
	}

	return domain.NewSnapshot(id, tenantID, asOf, financialYear, items, currentEarnings(chart, raw), now)
}

// currentEarnings is revenue minus expense that has not been closed yet.
func currentEarnings(chart *domain.Chart, raw map[int64]decimal.Decimal) decimal.Decimal {
	earnings := decimal.Zero
	for _, a := range chart.Active(domain.CategoryRevenue, domain.CategoryExpense) {
		n := a.Normalize(raw[a.ID])
		if a.Category == domain.CategoryRevenue {
			earnings = earnings.Add(n)
		} else {
			earnings = earnings.Sub(n)
		}
	}
	return earnings
}
