package domain

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		category    Category
		subCategory string
		section     SectionType
		subSection  string
		expectedErr error
	}{
		{"asset default", CategoryAsset, "", SectionAssets, SubCurrentAssets, nil},
		{"fixed asset", CategoryAsset, "fixed", SectionAssets, SubNonCurrentAssets, nil},
		{"intangible asset", CategoryAsset, "intangible", SectionAssets, SubNonCurrentAssets, nil},
		{"current liability", CategoryLiability, "current", SectionLiabilities, SubCurrentLiabilities, nil},
		{"long term liability", CategoryLiability, "long_term", SectionLiabilities, SubLongTermLiabilities, nil},
		{"share capital", CategoryEquity, "capital", SectionEquity, SubShareCapital, nil},
		{"retained earnings", CategoryEquity, "retained_earnings", SectionEquity, SubRetainedEarnings, nil},
		{"drawings", CategoryEquity, "drawings", SectionEquity, SubOtherEquity, nil},
		{"revenue rejected", CategoryRevenue, "", "", "", ErrUnclassifiableAccount},
		{"expense rejected", CategoryExpense, "", "", "", ErrUnclassifiableAccount},
		{"unknown sub-category", CategoryAsset, "crypto", "", "", ErrUnclassifiableAccount},
		{"unknown category", Category("memo"), "", "", "", ErrUnclassifiableAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{ID: 1, Code: "X", Category: tt.category, SubCategory: tt.subCategory}
			section, sub, err := Classify(nil, acc)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if section != tt.section || sub != tt.subSection {
				t.Errorf("expected %s/%s, got %s/%s", tt.section, tt.subSection, section, sub)
			}
		})
	}
}

func TestClassify_InheritsFromParent(t *testing.T) {
	chart, err := NewChart([]*Account{
		{ID: 1, Code: "1500", Category: CategoryAsset, NormalBalance: NormalDebit, SubCategory: "fixed"},
		{ID: 2, Code: "1510", Category: CategoryAsset, NormalBalance: NormalDebit, ParentAccountID: parent(1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child, _ := chart.Get(2)
	section, sub, err := Classify(chart, child)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if section != SectionAssets || sub != SubNonCurrentAssets {
		t.Errorf("expected child to inherit non-current placement, got %s/%s", section, sub)
	}
}
