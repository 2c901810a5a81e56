package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
	"github.com/iho/ledgerclose/internal/usecase/mocks"
)

func generate(t *testing.T, f *fixture, asOf, fy string) *domain.BalanceSheetSnapshot {
	t.Helper()
	s, err := f.snapshotUC.Generate(context.Background(), usecase.GenerateSnapshotInput{
		TenantID: tenant, AsOfDate: date(t, asOf), FinancialYear: fy, Settings: settings(),
	})
	if err != nil {
		t.Fatalf("generate %s failed: %v", asOf, err)
	}
	return s
}

func TestComparisonUseCase_Compare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, "2023-06-01", accCash, accCapital, "1000.00")
	prev := generate(t, f, "2023-12-31", "2023")

	f.post(t, "2024-02-01", accEquipment, accPayables, "400.00")
	f.post(t, "2024-03-01", accPayables, accCash, "100.00")
	cur := generate(t, f, "2024-12-31", "2024")

	record, err := f.comparisonUC.Compare(ctx, tenant, cur.ID, prev.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := make(map[string]domain.ComparisonLine)
	for _, l := range record.Lines {
		lines[l.AccountCode] = l
	}

	// Equipment and payables exist only in the current snapshot.
	if l := lines["1500"]; !l.PreviousAmount.IsZero() || !l.Delta.Equal(dec("400")) {
		t.Errorf("unexpected equipment line: %+v", l)
	}
	if l := lines["1000"]; !l.Delta.Equal(dec("-100")) {
		t.Errorf("expected cash delta -100, got %s", l.Delta)
	}
	if l := lines["2000"]; !l.CurrentAmount.Equal(dec("300")) {
		t.Errorf("expected payables 300, got %s", l.CurrentAmount)
	}

	for _, sc := range record.Sections {
		sum := dec("0")
		for _, l := range record.Lines {
			if l.SectionType == sc.SectionType {
				sum = sum.Add(l.Delta)
			}
		}
		if !sc.Delta.Equal(sum) {
			t.Errorf("section %s delta %s differs from line sum %s", sc.SectionType, sc.Delta, sum)
		}
	}

	if f.comparisons.Count() != 1 {
		t.Errorf("expected comparison to be logged, got %d", f.comparisons.Count())
	}
}

func TestComparisonUseCase_Symmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, "2023-06-01", accCash, accCapital, "1000.00")
	a := generate(t, f, "2023-12-31", "2023")
	f.post(t, "2024-06-01", accEquipment, accCash, "250.00")
	b := generate(t, f, "2024-12-31", "2024")

	ab, err := f.comparisonUC.Compare(ctx, tenant, a.ID, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := f.comparisonUC.Compare(ctx, tenant, b.ID, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reverse := make(map[string]domain.ComparisonLine)
	for _, l := range ba.Lines {
		reverse[l.AccountCode] = l
	}
	for _, l := range ab.Lines {
		if !l.Delta.Equal(reverse[l.AccountCode].Delta.Neg()) {
			t.Errorf("account %s: %s is not the negation of %s", l.AccountCode, l.Delta, reverse[l.AccountCode].Delta)
		}
	}
}

func TestComparisonUseCase_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, "2024-01-01", accCash, accCapital, "10.00")
	s := generate(t, f, "2024-01-31", "2024")

	if _, err := f.comparisonUC.Compare(ctx, tenant, s.ID, s.ID); !errors.Is(err, domain.ErrInvalidComparison) {
		t.Errorf("expected ErrInvalidComparison, got %v", err)
	}
	if _, err := f.comparisonUC.Compare(ctx, tenant, s.ID, "missing"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
	if _, err := f.comparisonUC.Compare(ctx, "other", s.ID, "x"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound across tenants, got %v", err)
	}
}

func TestComparisonUseCase_CachesFinalizedPairs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cur := &domain.BalanceSheetSnapshot{ID: "cur", TenantID: tenant, Status: domain.SnapshotStatusFinalized,
		Items: []domain.BalanceSheetItem{{AccountID: 1, AccountCode: "1000", SectionType: domain.SectionAssets, Amount: dec("20")}}}
	prev := &domain.BalanceSheetSnapshot{ID: "prev", TenantID: tenant, Status: domain.SnapshotStatusFinalized,
		Items: []domain.BalanceSheetItem{{AccountID: 1, AccountCode: "1000", SectionType: domain.SectionAssets, Amount: dec("5")}}}

	repo := mocks.NewMockSnapshotRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), tenant, "cur").Return(cur, nil).Times(2)
	repo.EXPECT().GetByID(gomock.Any(), tenant, "prev").Return(prev, nil).Times(2)

	var cached []byte
	cache := mocks.NewMockCache(ctrl)
	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), "comparison:acme:cur:prev").Return(nil, nil),
		cache.EXPECT().Set(gomock.Any(), "comparison:acme:cur:prev", gomock.Any(), usecase.ComparisonCacheTTL).
			DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
				cached = value
				return nil
			}),
		cache.EXPECT().Get(gomock.Any(), "comparison:acme:cur:prev").
			DoAndReturn(func(context.Context, string) ([]byte, error) { return cached, nil }),
	)

	idGen := mocks.NewMockIDGenerator(ctrl)
	idGen.EXPECT().Generate().Return("cmp-1")

	uc := usecase.NewComparisonUseCase(repo, nil, cache, idGen, nil, 0, zerolog.Nop(), nil)

	first, err := uc.Compare(context.Background(), tenant, "cur", "prev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := uc.Compare(context.Background(), tenant, "cur", "prev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID || !second.Lines[0].Delta.Equal(dec("15")) {
		t.Errorf("expected cached comparison, got %+v", second)
	}

	var decoded domain.ComparisonRecord
	if err := json.Unmarshal(cached, &decoded); err != nil {
		t.Fatalf("cached value is not valid JSON: %v", err)
	}
}

func TestComparisonUseCase_DraftsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cur := &domain.BalanceSheetSnapshot{ID: "cur", TenantID: tenant, Status: domain.SnapshotStatusDraft}
	prev := &domain.BalanceSheetSnapshot{ID: "prev", TenantID: tenant, Status: domain.SnapshotStatusFinalized}

	repo := mocks.NewMockSnapshotRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), tenant, "cur").Return(cur, nil)
	repo.EXPECT().GetByID(gomock.Any(), tenant, "prev").Return(prev, nil)

	// No calls expected on the cache.
	cache := mocks.NewMockCache(ctrl)

	idGen := mocks.NewMockIDGenerator(ctrl)
	idGen.EXPECT().Generate().Return("cmp-1")

	uc := usecase.NewComparisonUseCase(repo, nil, cache, idGen, nil, 0, zerolog.Nop(), nil)
	if _, err := uc.Compare(context.Background(), tenant, "cur", "prev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
