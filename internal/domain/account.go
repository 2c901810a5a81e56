package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Category is the accounting class of an account.
type Category string

const (
	CategoryAsset     Category = "asset"
	CategoryLiability Category = "liability"
	CategoryEquity    Category = "equity"
	CategoryRevenue   Category = "revenue"
	CategoryExpense   Category = "expense"
)

// NormalBalance is the side on which an account's balance is conventionally positive.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// Account is chart-of-accounts metadata as served by the account directory.
// The core reads accounts and never writes them.
type Account struct {
	ID            int64
	TenantID      string
	Code          string
	Name          string
	Category      Category
	NormalBalance NormalBalance
	// SubCategory refines the balance-sheet placement (current, non_current, ...).
	// Empty means inherit from the parent account.
	SubCategory     string
	ParentAccountID *int64
	IsActive        bool
}

// IsBalanceSheet reports whether the account belongs on the balance sheet.
func (a *Account) IsBalanceSheet() bool {
	switch a.Category {
	case CategoryAsset, CategoryLiability, CategoryEquity:
		return true
	}
	return false
}

// IsIncomeStatement reports whether the account is closed at year end.
func (a *Account) IsIncomeStatement() bool {
	return a.Category == CategoryRevenue || a.Category == CategoryExpense
}

// Normalize converts a raw ledger balance (debits positive, credits negative)
// into an amount that is positive on the account's normal side.
func (a *Account) Normalize(raw decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalCredit {
		return raw.Neg()
	}
	return raw
}

// Validate checks the account metadata the core depends on.
func (a *Account) Validate() error {
	code := strings.TrimSpace(a.Code)
	if code == "" {
		return fmt.Errorf("%w: account %d has no code", ErrInvalidAccount, a.ID)
	}

	if len(code) > MaxAccountCodeLength {
		return fmt.Errorf("%w: code of account %d exceeds %d characters", ErrInvalidAccount, a.ID, MaxAccountCodeLength)
	}

	switch a.NormalBalance {
	case NormalDebit, NormalCredit:
	default:
		return fmt.Errorf("%w: account %s has normal balance %q", ErrInvalidAccount, a.Code, a.NormalBalance)
	}

	return nil
}
