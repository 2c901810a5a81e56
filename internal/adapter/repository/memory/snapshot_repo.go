package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// SnapshotRepository implements usecase.SnapshotRepository.
type SnapshotRepository struct {
	store *Store
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(store *Store) *SnapshotRepository {
	return &SnapshotRepository{store: store}
}

// Create stores a new snapshot. (tenant, as_of_date) is unique.
func (r *SnapshotRepository) Create(_ context.Context, tx usecase.Transaction, snapshot *domain.BalanceSheetSnapshot) error {
	return r.store.write(tx, func(st *state) error {
		if findByDate(st, snapshot.TenantID, snapshot.AsOfDate) != nil {
			return fmt.Errorf("%w: snapshot for %s already exists", domain.ErrConcurrentModification,
				snapshot.AsOfDate.Format(domain.DateLayout))
		}
		st.snapshots[snapshot.ID] = snapshot.Clone()
		return nil
	})
}

// Update replaces a stored snapshot if its version matches.
func (r *SnapshotRepository) Update(_ context.Context, tx usecase.Transaction, snapshot *domain.BalanceSheetSnapshot, expectedVersion int64) error {
	return r.store.write(tx, func(st *state) error {
		current, ok := st.snapshots[snapshot.ID]
		if !ok || current.TenantID != snapshot.TenantID {
			return domain.ErrSnapshotNotFound
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: expected version %d, found %d", domain.ErrConcurrentModification,
				expectedVersion, current.Version)
		}
		st.snapshots[snapshot.ID] = snapshot.Clone()
		return nil
	})
}

// GetByID retrieves a snapshot by ID.
func (r *SnapshotRepository) GetByID(_ context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error) {
	var out *domain.BalanceSheetSnapshot
	err := r.store.read(func(st *state) error {
		s, ok := st.snapshots[id]
		if !ok || s.TenantID != tenantID {
			return domain.ErrSnapshotNotFound
		}
		out = s.Clone()
		return nil
	})
	return out, err
}

// GetByIDForUpdate retrieves a snapshot by ID within a transaction.
func (r *SnapshotRepository) GetByIDForUpdate(ctx context.Context, _ usecase.Transaction, tenantID, id string) (*domain.BalanceSheetSnapshot, error) {
	return r.GetByID(ctx, tenantID, id)
}

// GetByDateForUpdate retrieves the snapshot for a date within a transaction.
func (r *SnapshotRepository) GetByDateForUpdate(ctx context.Context, _ usecase.Transaction, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error) {
	return r.GetByDate(ctx, tenantID, asOf)
}

// GetByDate retrieves the snapshot for a date.
func (r *SnapshotRepository) GetByDate(_ context.Context, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error) {
	var out *domain.BalanceSheetSnapshot
	err := r.store.read(func(st *state) error {
		s := findByDate(st, tenantID, asOf)
		if s == nil {
			return domain.ErrSnapshotNotFound
		}
		out = s.Clone()
		return nil
	})
	return out, err
}

// Delete removes a snapshot.
func (r *SnapshotRepository) Delete(_ context.Context, tx usecase.Transaction, tenantID, id string) error {
	return r.store.write(tx, func(st *state) error {
		s, ok := st.snapshots[id]
		if !ok || s.TenantID != tenantID {
			return domain.ErrSnapshotNotFound
		}
		delete(st.snapshots, id)
		return nil
	})
}

// List retrieves snapshots ordered by date, newest first.
func (r *SnapshotRepository) List(_ context.Context, tenantID string, limit, offset int) ([]*domain.BalanceSheetSnapshot, error) {
	var all []*domain.BalanceSheetSnapshot
	err := r.store.read(func(st *state) error {
		for _, s := range st.snapshots {
			if s.TenantID == tenantID {
				all = append(all, s.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].AsOfDate.After(all[j].AsOfDate) })

	if offset >= len(all) {
		return []*domain.BalanceSheetSnapshot{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func findByDate(st *state, tenantID string, asOf time.Time) *domain.BalanceSheetSnapshot {
	asOf = domain.DateOnly(asOf)
	for _, s := range st.snapshots {
		if s.TenantID == tenantID && s.AsOfDate.Equal(asOf) {
			return s
		}
	}
	return nil
}

// ComparisonRepository implements usecase.ComparisonRepository.
type ComparisonRepository struct {
	store *Store
}

// NewComparisonRepository creates a new ComparisonRepository.
func NewComparisonRepository(store *Store) *ComparisonRepository {
	return &ComparisonRepository{store: store}
}

// Create appends a comparison to the access log.
func (r *ComparisonRepository) Create(_ context.Context, record *domain.ComparisonRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *record
	r.store.comparisons = append(r.store.comparisons, &cp)
	return nil
}

// Count returns the number of logged comparisons.
func (r *ComparisonRepository) Count() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.comparisons)
}
