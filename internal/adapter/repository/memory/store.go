// Package memory is an in-process storage driver implementing every port.
// It backs STORAGE_DRIVER=memory and the use case tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

var errTxDone = errors.New("memory: transaction already finished")

type journalLine struct {
	tenantID  string
	accountID int64
	date      time.Time
	// amount is debit-positive.
	amount decimal.Decimal
}

type state struct {
	accounts  map[string]map[int64]*domain.Account
	journal   []journalLine
	batches   map[string]domain.AppliedBatch
	snapshots map[string]*domain.BalanceSheetSnapshot
	closes    map[string]*domain.YearEndClose
	opening   map[string][]domain.OpeningBalance
	invoices  map[string]*domain.Invoice
	notes     map[string]*domain.AdjustmentNote
	payments  map[string]*domain.Payment
	credits   []*domain.OnAccountCredit
	outbox    []*domain.OutboxEvent
	seq       int64
}

func newState() *state {
	return &state{
		accounts:  make(map[string]map[int64]*domain.Account),
		batches:   make(map[string]domain.AppliedBatch),
		snapshots: make(map[string]*domain.BalanceSheetSnapshot),
		closes:    make(map[string]*domain.YearEndClose),
		opening:   make(map[string][]domain.OpeningBalance),
		invoices:  make(map[string]*domain.Invoice),
		notes:     make(map[string]*domain.AdjustmentNote),
		payments:  make(map[string]*domain.Payment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for tenant, accs := range s.accounts {
		m := make(map[int64]*domain.Account, len(accs))
		for id, a := range accs {
			cp := *a
			m[id] = &cp
		}
		c.accounts[tenant] = m
	}
	c.journal = append([]journalLine(nil), s.journal...)
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = v.Clone()
	}
	for k, v := range s.closes {
		cp := *v
		c.closes[k] = &cp
	}
	for k, v := range s.opening {
		c.opening[k] = append([]domain.OpeningBalance(nil), v...)
	}
	for k, v := range s.invoices {
		cp := *v
		c.invoices[k] = &cp
	}
	for k, v := range s.notes {
		cp := *v
		c.notes[k] = &cp
	}
	for k, v := range s.payments {
		cp := *v
		c.payments[k] = &cp
	}
	for _, v := range s.credits {
		cp := *v
		c.credits = append(c.credits, &cp)
	}
	for _, v := range s.outbox {
		cp := *v
		c.outbox = append(c.outbox, &cp)
	}
	c.seq = s.seq
	return c
}

// Store holds all data in memory. Write transactions are serialized: Begin
// waits for the previous transaction to finish and Rollback restores the
// state captured at Begin. Writes made without a transaction commit on their
// own and wait for an open transaction to finish first, so a rollback never
// discards them. They must not be issued from the goroutine holding that
// transaction.
type Store struct {
	sem chan struct{}

	mu    sync.RWMutex
	state *state

	// Comparison access log. Not transactional.
	comparisons []*domain.ComparisonRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sem:   make(chan struct{}, 1),
		state: newState(),
	}
}

// Begin starts a transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	backup := s.state.clone()
	s.mu.RUnlock()

	return &Tx{store: s, backup: backup}, nil
}

// Tx is a memory transaction.
type Tx struct {
	store  *Store
	backup *state
	done   bool
}

// Commit keeps every change made since Begin.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.backup = nil
	<-t.store.sem
	return nil
}

// Rollback discards every change made since Begin. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	t.store.mu.Lock()
	t.store.state = t.backup
	t.store.mu.Unlock()

	t.backup = nil
	<-t.store.sem
	return nil
}

// write applies fn within tx, or as its own transaction when tx is nil.
func (s *Store) write(tx usecase.Transaction, fn func(st *state) error) error {
	if tx == nil {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// LockTenant is satisfied by the store's transaction serialization.
func (s *Store) LockTenant(ctx context.Context, _ usecase.Transaction, tenantID string) error {
	if tenantID == "" {
		return domain.ErrInvalidTenant
	}
	return ctx.Err()
}

// Ping reports the store as healthy.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
