package memory

import (
	"context"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// CloseRepository implements usecase.CloseRepository.
type CloseRepository struct {
	store *Store
}

// NewCloseRepository creates a new CloseRepository.
func NewCloseRepository(store *Store) *CloseRepository {
	return &CloseRepository{store: store}
}

func closeKey(tenantID, financialYear string) string {
	return tenantID + "\x00" + financialYear
}

// Get returns the close of a financial year, or nil.
func (r *CloseRepository) Get(_ context.Context, _ usecase.Transaction, tenantID, financialYear string) (*domain.YearEndClose, error) {
	var out *domain.YearEndClose
	err := r.store.read(func(st *state) error {
		if c, ok := st.closes[closeKey(tenantID, financialYear)]; ok {
			cp := *c
			out = &cp
		}
		return nil
	})
	return out, err
}

// Create records a close with its opening balances.
func (r *CloseRepository) Create(_ context.Context, tx usecase.Transaction, record *domain.YearEndClose, opening []domain.OpeningBalance) error {
	return r.store.write(tx, func(st *state) error {
		key := closeKey(record.TenantID, record.FinancialYear)
		if _, ok := st.closes[key]; ok {
			return domain.ErrPeriodAlreadyClosed
		}
		cp := *record
		st.closes[key] = &cp
		st.opening[closeKey(record.TenantID, record.NextFinancialYear)] = append([]domain.OpeningBalance(nil), opening...)
		return nil
	})
}

// OpeningBalances returns the balances a close carried into financialYear.
func (r *CloseRepository) OpeningBalances(_ context.Context, tenantID, financialYear string) ([]domain.OpeningBalance, error) {
	var out []domain.OpeningBalance
	err := r.store.read(func(st *state) error {
		out = append(out, st.opening[closeKey(tenantID, financialYear)]...)
		return nil
	})
	return out, err
}
