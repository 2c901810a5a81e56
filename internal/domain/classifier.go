package domain

import "fmt"

// SectionType is a top-level balance sheet section.
type SectionType string

const (
	SectionAssets      SectionType = "assets"
	SectionLiabilities SectionType = "liabilities"
	SectionEquity      SectionType = "equity"
)

// Sections lists balance sheet sections in presentation order.
var Sections = []SectionType{SectionAssets, SectionLiabilities, SectionEquity}

// Sub-sections assigned by the classifier.
const (
	SubCurrentAssets        = "current_assets"
	SubNonCurrentAssets     = "non_current_assets"
	SubCurrentLiabilities   = "current_liabilities"
	SubLongTermLiabilities  = "long_term_liabilities"
	SubShareCapital         = "share_capital"
	SubRetainedEarnings     = "retained_earnings"
	SubOtherEquity          = "other_equity"
	SubCurrentYearEarnings  = "current_year_earnings"
	subCategoryDefault      = ""
	subCategoryCurrent      = "current"
	subCategoryNonCurrent   = "non_current"
	subCategoryFixed        = "fixed"
	subCategoryLongTerm     = "long_term"
	subCategoryCapital      = "capital"
	subCategoryRetained     = "retained_earnings"
	subCategoryOtherEquity  = "other"
	subCategoryIntangible   = "intangible"
	subCategoryInvestment   = "investment"
	subCategoryProvision    = "provision"
	subCategoryContraEquity = "drawings"
)

type placement struct {
	section    SectionType
	subSection string
}

var classification = map[Category]map[string]placement{
	CategoryAsset: {
		subCategoryDefault:    {SectionAssets, SubCurrentAssets},
		subCategoryCurrent:    {SectionAssets, SubCurrentAssets},
		subCategoryNonCurrent: {SectionAssets, SubNonCurrentAssets},
		subCategoryFixed:      {SectionAssets, SubNonCurrentAssets},
		subCategoryIntangible: {SectionAssets, SubNonCurrentAssets},
		subCategoryInvestment: {SectionAssets, SubNonCurrentAssets},
	},
	CategoryLiability: {
		subCategoryDefault:    {SectionLiabilities, SubCurrentLiabilities},
		subCategoryCurrent:    {SectionLiabilities, SubCurrentLiabilities},
		subCategoryNonCurrent: {SectionLiabilities, SubLongTermLiabilities},
		subCategoryLongTerm:   {SectionLiabilities, SubLongTermLiabilities},
		subCategoryProvision:  {SectionLiabilities, SubLongTermLiabilities},
	},
	CategoryEquity: {
		subCategoryDefault:      {SectionEquity, SubOtherEquity},
		subCategoryCapital:      {SectionEquity, SubShareCapital},
		subCategoryRetained:     {SectionEquity, SubRetainedEarnings},
		subCategoryOtherEquity:  {SectionEquity, SubOtherEquity},
		subCategoryContraEquity: {SectionEquity, SubOtherEquity},
	},
}

// Classify places an account on the balance sheet. The sub-category is
// resolved through the chart so that children inherit their parent's placement.
// Revenue, expense and unknown categories are rejected.
func Classify(chart *Chart, a *Account) (SectionType, string, error) {
	bySub, ok := classification[a.Category]
	if !ok {
		return "", "", fmt.Errorf("%w: %s has category %q", ErrUnclassifiableAccount, a.Code, a.Category)
	}

	sub := a.SubCategory
	if chart != nil {
		sub = chart.EffectiveSubCategory(a)
	}

	p, ok := bySub[sub]
	if !ok {
		return "", "", fmt.Errorf("%w: %s has sub-category %q", ErrUnclassifiableAccount, a.Code, sub)
	}

	return p.section, p.subSection, nil
}
