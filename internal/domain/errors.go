package domain

import (
	"errors"
	"fmt"
)

// Kind groups domain errors by how a caller can recover from them.
type Kind string

const (
	// KindValidation marks malformed input. Fix the input and retry.
	KindValidation Kind = "validation"
	// KindState marks an illegal state transition. Pick a different target.
	KindState Kind = "state"
	// KindConsistency marks data that contradicts ledger invariants.
	KindConsistency Kind = "consistency"
	// KindDependency marks a failing or incomplete port. Safe to retry with backoff.
	KindDependency Kind = "dependency"
	// KindNotFound marks a missing resource.
	KindNotFound Kind = "not_found"
	// KindInternal is reported for errors that carry no kind.
	KindInternal Kind = "internal"
)

// Error is a classified domain error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// Validation errors
	ErrInvalidAmount        = newError(KindValidation, "invalid_amount", "amount must be positive")
	ErrInvalidDate          = newError(KindValidation, "invalid_date", "invalid date")
	ErrInvalidFinancialYear = newError(KindValidation, "invalid_financial_year", "invalid financial year")
	ErrInvalidTenant        = newError(KindValidation, "invalid_tenant", "tenant id is required")
	ErrInvalidNote          = newError(KindValidation, "invalid_note", "invalid note")
	ErrInvalidAccount       = newError(KindValidation, "invalid_account", "invalid account")
	ErrCounterpartyMismatch = newError(KindValidation, "counterparty_mismatch", "allocation target belongs to a different counterparty")
	ErrNoAllocationTarget   = newError(KindValidation, "no_allocation_target", "payment has no invoice or note to allocate to")
	ErrInvalidPayment       = newError(KindValidation, "invalid_payment", "invalid payment")

	// State errors
	ErrSnapshotAlreadyFinalized = newError(KindState, "snapshot_already_finalized", "a finalized snapshot already exists for this date")
	ErrAlreadyFinalized         = newError(KindState, "already_finalized", "snapshot is already finalized")
	ErrUnbalancedSnapshot       = newError(KindState, "unbalanced_snapshot", "snapshot is not balanced")
	ErrSnapshotFinalized        = newError(KindState, "snapshot_finalized", "finalized snapshots cannot be deleted")
	ErrUnbalancedPeriod         = newError(KindState, "unbalanced_period", "ledger is not balanced at closing date")
	ErrPeriodAlreadyClosed      = newError(KindState, "period_already_closed", "financial year is already closed")
	ErrInvalidComparison        = newError(KindState, "invalid_comparison", "cannot compare a snapshot with itself")

	// Consistency errors
	ErrUnclassifiableAccount  = newError(KindConsistency, "unclassifiable_account", "account cannot be placed on the balance sheet")
	ErrAccountCycle           = newError(KindConsistency, "account_cycle", "account hierarchy contains a cycle")
	ErrDuplicateAccount       = newError(KindConsistency, "duplicate_account", "account id or code is not unique")
	ErrConcurrentModification = newError(KindConsistency, "concurrent_modification", "snapshot was modified concurrently")
	ErrOverAllocation         = newError(KindConsistency, "over_allocation", "allocation exceeds open amount")
	ErrUnbalancedBatch        = newError(KindConsistency, "unbalanced_batch", "posting batch debits do not equal credits")

	// Dependency errors
	ErrNoLedgerData = newError(KindDependency, "no_ledger_data", "ledger has no data for the requested date")

	// Not found errors
	ErrSnapshotNotFound   = newError(KindNotFound, "snapshot_not_found", "snapshot not found")
	ErrNoteNotFound       = newError(KindNotFound, "note_not_found", "note not found")
	ErrAccountNotFound    = newError(KindNotFound, "account_not_found", "account not found")
	ErrInvoiceNotFound    = newError(KindNotFound, "invoice_not_found", "invoice not found")
	ErrAdjustmentNotFound = newError(KindNotFound, "adjustment_note_not_found", "credit or debit note not found")
)

// DependencyError wraps a failure reported by a ledger port or store.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// WrapDependency marks err as a dependency failure unless it already carries a domain kind.
func WrapDependency(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return err
	}

	var dep *DependencyError
	if errors.As(err, &dep) {
		return err
	}

	return &DependencyError{Op: op, Err: err}
}

// KindOf reports the kind of err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	var dep *DependencyError
	if errors.As(err, &dep) {
		return KindDependency
	}

	return KindInternal
}

// CodeOf reports the stable code of err, or "internal".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}

	var dep *DependencyError
	if errors.As(err, &dep) {
		return "dependency_failure"
	}

	return "internal"
}
