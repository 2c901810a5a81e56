package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a posting.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Posting is one line of a ledger write batch. Amount is always positive.
type Posting struct {
	AccountID int64
	Amount    decimal.Decimal
	Direction Direction
}

// RawEffect returns the posting's effect on a debit-positive ledger balance.
func (p Posting) RawEffect() decimal.Decimal {
	if p.Direction == Credit {
		return p.Amount.Neg()
	}
	return p.Amount
}

// PostingBatch is applied by the ledger write port atomically or not at all.
type PostingBatch struct {
	IdempotencyKey string
	TenantID       string
	EffectiveDate  time.Time
	Description    string
	Postings       []Posting
}

// Validate checks every posting is positive and the batch balances.
func (b *PostingBatch) Validate() error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, p := range b.Postings {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: posting to account %d", ErrInvalidAmount, p.AccountID)
		}
		switch p.Direction {
		case Debit:
			debits = debits.Add(p.Amount)
		case Credit:
			credits = credits.Add(p.Amount)
		default:
			return fmt.Errorf("%w: direction %q", ErrUnbalancedBatch, p.Direction)
		}
	}

	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s, credits %s", ErrUnbalancedBatch, debits, credits)
	}
	return nil
}

// CommitResult is returned by the ledger write port.
type CommitResult struct {
	BatchID string
	// AlreadyApplied is set when the idempotency key matched a committed batch.
	AlreadyApplied bool
	AppliedAt      time.Time
}

// AppliedBatch is a posting batch the ledger has already committed.
type AppliedBatch struct {
	Batch  PostingBatch
	Result CommitResult
}

// YearEndClose records a completed year-end close.
type YearEndClose struct {
	ID                string
	TenantID          string
	FinancialYear     string
	NextFinancialYear string
	ClosingDate       time.Time
	NetIncome         decimal.Decimal
	BatchID           string
	OpeningSnapshotID string
	ClosedAt          time.Time
}

// OpeningBalance is an account's balance carried into the next financial year,
// normalized to the account's normal side.
type OpeningBalance struct {
	AccountID     int64
	FinancialYear string
	Amount        decimal.Decimal
}

// ClosingPlan is the outcome of planning a year-end close.
type ClosingPlan struct {
	NetIncome decimal.Decimal
	Batch     PostingBatch
	// PostClose holds debit-positive balances of balance sheet accounts after the batch.
	PostClose map[int64]decimal.Decimal
}

// CloseIdempotencyKey identifies the closing batch of a financial year.
func CloseIdempotencyKey(tenantID, financialYear string) string {
	return "close:" + tenantID + ":" + financialYear
}

// PlanClose builds the closing batch that brings every revenue and expense
// account to zero and moves net income into the retained earnings account.
// raw holds debit-positive balances as of the closing date.
func PlanClose(chart *Chart, raw map[int64]decimal.Decimal, retainedEarnings *Account, tenantID, financialYear string, closingDate time.Time) (*ClosingPlan, error) {
	if retainedEarnings == nil || retainedEarnings.Category != CategoryEquity {
		return nil, fmt.Errorf("%w: retained earnings must be an equity account", ErrInvalidAccount)
	}
	if !retainedEarnings.IsActive {
		return nil, fmt.Errorf("%w: retained earnings account %s is inactive", ErrInvalidAccount, retainedEarnings.Code)
	}

	netIncome := decimal.Zero
	var postings []Posting

	for _, a := range chart.Active(CategoryRevenue, CategoryExpense) {
		bal := raw[a.ID]
		if bal.IsZero() {
			continue
		}

		n := a.Normalize(bal)
		if a.Category == CategoryRevenue {
			netIncome = netIncome.Add(n)
		} else {
			netIncome = netIncome.Sub(n)
		}

		// Reverse the raw balance.
		if bal.IsPositive() {
			postings = append(postings, Posting{AccountID: a.ID, Amount: bal, Direction: Credit})
		} else {
			postings = append(postings, Posting{AccountID: a.ID, Amount: bal.Neg(), Direction: Debit})
		}
	}

	switch {
	case netIncome.IsPositive():
		postings = append(postings, Posting{AccountID: retainedEarnings.ID, Amount: netIncome, Direction: Credit})
	case netIncome.IsNegative():
		postings = append(postings, Posting{AccountID: retainedEarnings.ID, Amount: netIncome.Neg(), Direction: Debit})
	}

	batch := PostingBatch{
		IdempotencyKey: CloseIdempotencyKey(tenantID, financialYear),
		TenantID:       tenantID,
		EffectiveDate:  DateOnly(closingDate),
		Description:    "year-end close " + financialYear,
		Postings:       postings,
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	postClose := make(map[int64]decimal.Decimal)
	for _, a := range chart.Active(CategoryAsset, CategoryLiability, CategoryEquity) {
		postClose[a.ID] = raw[a.ID]
	}
	for _, p := range postings {
		if _, ok := postClose[p.AccountID]; ok {
			postClose[p.AccountID] = postClose[p.AccountID].Add(p.RawEffect())
		}
	}

	return &ClosingPlan{NetIncome: netIncome, Batch: batch, PostClose: postClose}, nil
}

var splitYear = regexp.MustCompile(`^(\d{4})([-/])(\d{2}|\d{4})$`)

// WithoutBatch returns a copy of raw with the batch's postings reversed out.
func WithoutBatch(raw map[int64]decimal.Decimal, batch PostingBatch) map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal, len(raw))
	for id, bal := range raw {
		out[id] = bal
	}
	for _, p := range batch.Postings {
		out[p.AccountID] = out[p.AccountID].Sub(p.RawEffect())
	}
	return out
}

// PlanFromApplied rebuilds the plan of a closing batch that is already in the
// ledger. raw holds balances as of the closing date, batch included. Net income
// is what the batch moved out of revenue and expense accounts.
func PlanFromApplied(chart *Chart, raw map[int64]decimal.Decimal, batch PostingBatch) *ClosingPlan {
	netIncome := decimal.Zero
	for _, p := range batch.Postings {
		if a, ok := chart.Get(p.AccountID); ok && a.IsIncomeStatement() {
			netIncome = netIncome.Add(p.RawEffect())
		}
	}

	postClose := make(map[int64]decimal.Decimal)
	for _, a := range chart.Active(CategoryAsset, CategoryLiability, CategoryEquity) {
		postClose[a.ID] = raw[a.ID]
	}

	return &ClosingPlan{NetIncome: netIncome, Batch: batch, PostClose: postClose}
}

// NextFinancialYear derives the label that follows a financial year label.
// Supported shapes: "2024", "2024-25", "2024/2025", "FY2024".
func NextFinancialYear(label string) (string, error) {
	label = strings.TrimSpace(label)

	if m := splitYear.FindStringSubmatch(label); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[3])
		width := len(m[3])
		return fmt.Sprintf("%04d%s%0*d", start+1, m[2], width, (end+1)%pow10(width)), nil
	}

	prefix := strings.TrimRight(label, "0123456789")
	digits := label[len(prefix):]
	if digits == "" {
		return "", fmt.Errorf("%w: cannot derive the year after %q", ErrInvalidFinancialYear, label)
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFinancialYear, label)
	}
	return fmt.Sprintf("%s%0*d", prefix, len(digits), n+1), nil
}

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
