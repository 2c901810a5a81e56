package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// CloseTransactionTimeout bounds the year-end close, which touches every account.
	CloseTransactionTimeout = 30 * time.Second

	// ComparisonCacheTTL is how long comparisons of finalized snapshots are cached
	ComparisonCacheTTL = time.Hour

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
