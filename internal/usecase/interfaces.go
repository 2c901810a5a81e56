package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerclose/internal/domain"
)

// AccountDirectory serves chart-of-accounts metadata. A nil tx reads outside
// any transaction.
type AccountDirectory interface {
	Accounts(ctx context.Context, tx Transaction, tenantID string) ([]*domain.Account, error)
}

// LedgerReader answers balance-as-of-date questions.
type LedgerReader interface {
	// Balances returns debit-positive balances as of the given date for the
	// accounts that have ledger activity on or before it. Accounts without
	// activity are absent from the map. A nil tx reads outside any transaction.
	Balances(ctx context.Context, tx Transaction, tenantID string, accountIDs []int64, asOf time.Time) (map[int64]decimal.Decimal, error)
}

// LedgerWriter applies posting batches atomically within tx.
type LedgerWriter interface {
	ApplyBatch(ctx context.Context, tx Transaction, batch domain.PostingBatch) (domain.CommitResult, error)
	// AppliedBatch returns the committed batch with the given idempotency key,
	// or nil when there is none.
	AppliedBatch(ctx context.Context, tx Transaction, tenantID, idempotencyKey string) (*domain.AppliedBatch, error)
}

// SnapshotRepository persists balance sheet snapshots with their items and notes.
type SnapshotRepository interface {
	// Create inserts a new draft. A concurrent draft for the same date yields
	// domain.ErrConcurrentModification.
	Create(ctx context.Context, tx Transaction, snapshot *domain.BalanceSheetSnapshot) error
	// Update stores the snapshot if its stored version equals expectedVersion.
	Update(ctx context.Context, tx Transaction, snapshot *domain.BalanceSheetSnapshot, expectedVersion int64) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error)
	// GetByDate returns the snapshot for a date, or domain.ErrSnapshotNotFound.
	GetByDate(ctx context.Context, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, tenantID, id string) (*domain.BalanceSheetSnapshot, error)
	// GetByDateForUpdate returns the snapshot for a date, or domain.ErrSnapshotNotFound.
	GetByDateForUpdate(ctx context.Context, tx Transaction, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error)
	Delete(ctx context.Context, tx Transaction, tenantID, id string) error
	List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.BalanceSheetSnapshot, error)
}

// ComparisonRepository keeps an access log of comparison requests.
type ComparisonRepository interface {
	Create(ctx context.Context, record *domain.ComparisonRecord) error
}

// CloseRepository persists completed year-end closes.
type CloseRepository interface {
	// Get returns the close of a financial year, or nil when it has not been closed.
	Get(ctx context.Context, tx Transaction, tenantID, financialYear string) (*domain.YearEndClose, error)
	Create(ctx context.Context, tx Transaction, record *domain.YearEndClose, opening []domain.OpeningBalance) error
}

// PaymentRepository loads allocation targets and records payments.
type PaymentRepository interface {
	GetInvoicesForUpdate(ctx context.Context, tx Transaction, tenantID string, ids []string) ([]*domain.Invoice, error)
	GetNotesForUpdate(ctx context.Context, tx Transaction, tenantID string, ids []string) ([]*domain.AdjustmentNote, error)
	UpdateInvoice(ctx context.Context, tx Transaction, invoice *domain.Invoice) error
	UpdateNote(ctx context.Context, tx Transaction, note *domain.AdjustmentNote) error
	CreatePayment(ctx context.Context, tx Transaction, payment *domain.Payment) error
	CreateOnAccountCredit(ctx context.Context, tx Transaction, credit *domain.OnAccountCredit) error
}

// TenantLocker serializes multi-step operations over a tenant's account set.
type TenantLocker interface {
	LockTenant(ctx context.Context, tx Transaction, tenantID string) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage errors such as deadlocks.
// The use cases never retry; infrastructure workers may.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Cache defines caching operations.
type Cache interface {
	// Get returns nil without error on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release removes a key whose request did not complete.
	Release(ctx context.Context, key string) error
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
