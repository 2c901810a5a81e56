package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// AddAccount registers an account in the tenant's chart.
func (s *Store) AddAccount(tenantID string, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	return s.write(nil, func(st *state) error {
		accs := st.accounts[tenantID]
		if accs == nil {
			accs = make(map[int64]*domain.Account)
			st.accounts[tenantID] = accs
		}
		if _, ok := accs[account.ID]; ok {
			return fmt.Errorf("%w: account %d", domain.ErrDuplicateAccount, account.ID)
		}
		cp := *account
		cp.TenantID = tenantID
		accs[account.ID] = &cp
		return nil
	})
}

// Post records a balanced journal entry dated date.
func (s *Store) Post(tenantID string, date time.Time, postings ...domain.Posting) error {
	batch := domain.PostingBatch{TenantID: tenantID, EffectiveDate: date, Postings: postings}
	if err := batch.Validate(); err != nil {
		return err
	}
	return s.write(nil, func(st *state) error {
		return st.post(batch)
	})
}

func (st *state) post(batch domain.PostingBatch) error {
	accs := st.accounts[batch.TenantID]
	for _, p := range batch.Postings {
		if _, ok := accs[p.AccountID]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrAccountNotFound, p.AccountID)
		}
	}
	date := domain.DateOnly(batch.EffectiveDate)
	for _, p := range batch.Postings {
		st.journal = append(st.journal, journalLine{
			tenantID:  batch.TenantID,
			accountID: p.AccountID,
			date:      date,
			amount:    p.RawEffect(),
		})
	}
	return nil
}

// Accounts implements usecase.AccountDirectory.
func (s *Store) Accounts(_ context.Context, _ usecase.Transaction, tenantID string) ([]*domain.Account, error) {
	var out []*domain.Account
	err := s.read(func(st *state) error {
		for _, a := range st.accounts[tenantID] {
			cp := *a
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

// Balances implements usecase.LedgerReader.
func (s *Store) Balances(_ context.Context, _ usecase.Transaction, tenantID string, accountIDs []int64, asOf time.Time) (map[int64]decimal.Decimal, error) {
	want := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		want[id] = true
	}
	asOf = domain.DateOnly(asOf)

	out := make(map[int64]decimal.Decimal)
	err := s.read(func(st *state) error {
		for _, l := range st.journal {
			if l.tenantID != tenantID || !want[l.accountID] || l.date.After(asOf) {
				continue
			}
			out[l.accountID] = out[l.accountID].Add(l.amount)
		}
		return nil
	})
	return out, err
}

// ApplyBatch implements usecase.LedgerWriter. A batch whose idempotency key
// was already applied is reported as such and not applied again.
func (s *Store) ApplyBatch(_ context.Context, tx usecase.Transaction, batch domain.PostingBatch) (domain.CommitResult, error) {
	if err := batch.Validate(); err != nil {
		return domain.CommitResult{}, err
	}

	var result domain.CommitResult
	err := s.write(tx, func(st *state) error {
		if batch.IdempotencyKey != "" {
			if prev, ok := st.batches[batch.IdempotencyKey]; ok {
				result = prev.Result
				result.AlreadyApplied = true
				return nil
			}
		}

		if err := st.post(batch); err != nil {
			return err
		}

		st.seq++
		result = domain.CommitResult{
			BatchID:   fmt.Sprintf("batch-%06d", st.seq),
			AppliedAt: time.Now().UTC(),
		}
		if batch.IdempotencyKey != "" {
			st.batches[batch.IdempotencyKey] = domain.AppliedBatch{Batch: batch, Result: result}
		}
		return nil
	})
	return result, err
}

// AppliedBatch implements usecase.LedgerWriter.
func (s *Store) AppliedBatch(_ context.Context, _ usecase.Transaction, tenantID, idempotencyKey string) (*domain.AppliedBatch, error) {
	var found *domain.AppliedBatch
	err := s.read(func(st *state) error {
		if prev, ok := st.batches[idempotencyKey]; ok && prev.Batch.TenantID == tenantID {
			cp := prev
			cp.Batch.Postings = append([]domain.Posting(nil), prev.Batch.Postings...)
			found = &cp
		}
		return nil
	})
	return found, err
}
