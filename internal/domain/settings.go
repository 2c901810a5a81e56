package domain

// ReportingSettings is the per-tenant reporting configuration passed into
// snapshot generation and year-end close.
type ReportingSettings struct {
	// IncludeZeroBalances keeps zero-balance accounts as snapshot lines.
	IncludeZeroBalances bool
	// RetainedEarningsAccountID receives net income at year-end close.
	RetainedEarningsAccountID int64
}
