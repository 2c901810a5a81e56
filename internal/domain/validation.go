package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxAccountCodeLength   = 255
	MaxFinancialYearLength = 32
	MaxNoteTitleLength     = 255
	MaxTenantIDLength      = 64
	MaxPaymentAmount       = "1000000000000" // 1 trillion
	MinPaymentAmount       = "0.01"
	DateLayout             = "2006-01-02"
)

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, s)
	}
	return t, nil
}

// ValidateTenantID validates a tenant identifier.
func ValidateTenantID(tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrInvalidTenant
	}
	if len(tenantID) > MaxTenantIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidTenant, MaxTenantIDLength)
	}
	return nil
}

// ValidateFinancialYear validates a user-entered financial year label.
func ValidateFinancialYear(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: label cannot be empty", ErrInvalidFinancialYear)
	}
	if len(label) > MaxFinancialYearLength {
		return fmt.Errorf("%w: label exceeds %d characters", ErrInvalidFinancialYear, MaxFinancialYearLength)
	}
	return nil
}

// ValidateAsOfDate rejects zero dates.
func ValidateAsOfDate(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	return nil
}

// ValidateAmount validates a payment amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinPaymentAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrInvalidAmount, MinPaymentAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxPaymentAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, MaxPaymentAmount)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 100
	const DefaultPageSize = 20

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
