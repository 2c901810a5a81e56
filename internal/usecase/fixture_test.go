package usecase_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/adapter/repository/memory"
	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

const tenant = "acme"

// Chart of accounts used across the use case tests.
const (
	accCash      int64 = 1
	accEquipment int64 = 2
	accPayables  int64 = 3
	accCapital   int64 = 4
	accRetained  int64 = 5
	accSales     int64 = 6
	accExpenses  int64 = 7
	accSuspense  int64 = 8
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type fixture struct {
	store       *memory.Store
	snapshots   *memory.SnapshotRepository
	comparisons *memory.ComparisonRepository
	closes      *memory.CloseRepository
	payments    *memory.PaymentRepository
	outbox      *memory.OutboxRepository
	clock       fixedClock
	ids         *seqIDs

	snapshotUC   *usecase.SnapshotUseCase
	comparisonUC *usecase.ComparisonUseCase
	closeUC      *usecase.CloseUseCase
	allocationUC *usecase.AllocationUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:       store,
		snapshots:   memory.NewSnapshotRepository(store),
		comparisons: memory.NewComparisonRepository(store),
		closes:      memory.NewCloseRepository(store),
		payments:    memory.NewPaymentRepository(store),
		outbox:      memory.NewOutboxRepository(store),
		clock:       fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		ids:         &seqIDs{},
	}

	accounts := []*domain.Account{
		{ID: accCash, Code: "1000", Name: "Cash", Category: domain.CategoryAsset, NormalBalance: domain.NormalDebit, SubCategory: "current", IsActive: true},
		{ID: accEquipment, Code: "1500", Name: "Equipment", Category: domain.CategoryAsset, NormalBalance: domain.NormalDebit, SubCategory: "fixed", IsActive: true},
		{ID: accPayables, Code: "2000", Name: "Accounts Payable", Category: domain.CategoryLiability, NormalBalance: domain.NormalCredit, SubCategory: "current", IsActive: true},
		{ID: accCapital, Code: "3000", Name: "Share Capital", Category: domain.CategoryEquity, NormalBalance: domain.NormalCredit, SubCategory: "capital", IsActive: true},
		{ID: accRetained, Code: "3100", Name: "Retained Earnings", Category: domain.CategoryEquity, NormalBalance: domain.NormalCredit, SubCategory: "retained_earnings", IsActive: true},
		{ID: accSales, Code: "4000", Name: "Sales", Category: domain.CategoryRevenue, NormalBalance: domain.NormalCredit, IsActive: true},
		{ID: accExpenses, Code: "5000", Name: "Operating Expenses", Category: domain.CategoryExpense, NormalBalance: domain.NormalDebit, IsActive: true},
		{ID: accSuspense, Code: "9999", Name: "Suspense", Category: domain.CategoryAsset, NormalBalance: domain.NormalDebit, IsActive: false},
	}
	for _, a := range accounts {
		if err := store.AddAccount(tenant, a); err != nil {
			t.Fatalf("failed to add account %s: %v", a.Code, err)
		}
	}

	logger := zerolog.Nop()
	gen := usecase.NewGenerator(store, store, f.ids, f.clock)

	f.snapshotUC = usecase.NewSnapshotUseCase(store, gen, f.snapshots, f.outbox, f.ids, f.clock, logger, nil)
	f.comparisonUC = usecase.NewComparisonUseCase(f.snapshots, f.comparisons, nil, f.ids, f.clock, 0, logger, nil)
	f.closeUC = usecase.NewCloseUseCase(store, store, gen, store, f.snapshots, f.closes, f.outbox, f.ids, f.clock, logger, nil)
	f.allocationUC = usecase.NewAllocationUseCase(store, store, f.payments, f.outbox, f.ids, f.clock, logger, nil)

	return f
}

// post records a two-line journal entry: debit one account, credit another.
func (f *fixture) post(t *testing.T, date string, debit, credit int64, amount string) {
	t.Helper()

	d, err := domain.ParseDate(date)
	if err != nil {
		t.Fatalf("bad date: %v", err)
	}
	amt := decimal.RequireFromString(amount)
	if err := f.store.Post(tenant, d,
		domain.Posting{AccountID: debit, Amount: amt, Direction: domain.Debit},
		domain.Posting{AccountID: credit, Amount: amt, Direction: domain.Credit},
	); err != nil {
		t.Fatalf("failed to post: %v", err)
	}
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date: %v", err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func settings() domain.ReportingSettings {
	return domain.ReportingSettings{RetainedEarningsAccountID: accRetained}
}
