package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ComparisonLine is the per-account delta between two snapshots.
type ComparisonLine struct {
	AccountCode    string
	AccountName    string
	SectionType    SectionType
	SubSection     string
	CurrentAmount  decimal.Decimal
	PreviousAmount decimal.Decimal
	Delta          decimal.Decimal
}

// SectionComparison is the per-section delta, summed from lines.
type SectionComparison struct {
	SectionType    SectionType
	CurrentAmount  decimal.Decimal
	PreviousAmount decimal.Decimal
	Delta          decimal.Decimal
}

// ComparisonRecord is a derived comparison of two snapshots.
type ComparisonRecord struct {
	ID                   string
	TenantID             string
	CurrentPeriodID      string
	PreviousPeriodID     string
	ComparisonDate       time.Time
	Lines                []ComparisonLine
	Sections             []SectionComparison
	CurrentEarningsDelta decimal.Decimal
}

// Compare computes per-account and per-section deltas between two snapshots.
// Section figures are recomputed from the items, never taken from cached totals.
func Compare(current, previous *BalanceSheetSnapshot, now time.Time) (*ComparisonRecord, error) {
	if current.ID == previous.ID {
		return nil, ErrInvalidComparison
	}
	if current.TenantID != previous.TenantID {
		return nil, ErrSnapshotNotFound
	}

	cur := current.ItemsByCode()
	prev := previous.ItemsByCode()

	codes := make([]string, 0, len(cur)+len(prev))
	for code := range cur {
		codes = append(codes, code)
	}
	for code := range prev {
		if _, ok := cur[code]; !ok {
			codes = append(codes, code)
		}
	}

	lines := make([]ComparisonLine, 0, len(codes))
	for _, code := range codes {
		c, inCur := cur[code]
		p, inPrev := prev[code]

		// Placement and naming follow the current period when both exist.
		ref := c
		if !inCur {
			ref = p
		}

		curAmt := decimal.Zero
		if inCur {
			curAmt = c.Amount
		}
		prevAmt := decimal.Zero
		if inPrev {
			prevAmt = p.Amount
		}

		lines = append(lines, ComparisonLine{
			AccountCode:    code,
			AccountName:    ref.AccountName,
			SectionType:    ref.SectionType,
			SubSection:     ref.SubSection,
			CurrentAmount:  curAmt,
			PreviousAmount: prevAmt,
			Delta:          curAmt.Sub(prevAmt),
		})
	}

	order := map[SectionType]int{SectionAssets: 0, SectionLiabilities: 1, SectionEquity: 2}
	sort.Slice(lines, func(i, j int) bool {
		if order[lines[i].SectionType] != order[lines[j].SectionType] {
			return order[lines[i].SectionType] < order[lines[j].SectionType]
		}
		return lines[i].AccountCode < lines[j].AccountCode
	})

	sections := make(map[SectionType]*SectionComparison, len(Sections))
	for _, st := range Sections {
		sections[st] = &SectionComparison{
			SectionType:    st,
			CurrentAmount:  decimal.Zero,
			PreviousAmount: decimal.Zero,
			Delta:          decimal.Zero,
		}
	}
	for _, l := range lines {
		sc := sections[l.SectionType]
		sc.CurrentAmount = sc.CurrentAmount.Add(l.CurrentAmount)
		sc.PreviousAmount = sc.PreviousAmount.Add(l.PreviousAmount)
		sc.Delta = sc.Delta.Add(l.Delta)
	}

	out := make([]SectionComparison, 0, len(Sections))
	for _, st := range Sections {
		out = append(out, *sections[st])
	}

	return &ComparisonRecord{
		TenantID:             current.TenantID,
		CurrentPeriodID:      current.ID,
		PreviousPeriodID:     previous.ID,
		ComparisonDate:       now,
		Lines:                lines,
		Sections:             out,
		CurrentEarningsDelta: current.CurrentEarnings.Sub(previous.CurrentEarnings),
	}, nil
}
