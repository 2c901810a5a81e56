package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// SnapshotRepository implements usecase.SnapshotRepository. Items and notes
// live in child tables and are rewritten with the header on every update.
type SnapshotRepository struct {
	db querier
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db querier) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `
id, tenant_id, as_of_date, financial_year, status,
total_assets::text, total_liabilities::text, total_equity::text, current_earnings::text,
is_balanced, version, next_note_number, created_at, updated_at, finalized_at`

// Create inserts a new snapshot with its items and notes.
func (r *SnapshotRepository) Create(ctx context.Context, tx usecase.Transaction, s *domain.BalanceSheetSnapshot) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO balance_sheet_snapshots (
			id, tenant_id, as_of_date, financial_year, status,
			total_assets, total_liabilities, total_equity, current_earnings,
			is_balanced, version, next_note_number, created_at, updated_at, finalized_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.TenantID, s.AsOfDate, s.FinancialYear, string(s.Status),
		s.TotalAssets.String(), s.TotalLiabilities.String(), s.TotalEquity.String(), s.CurrentEarnings.String(),
		s.IsBalanced, s.Version, s.NextNoteNumber, s.CreatedAt, s.UpdatedAt, s.FinalizedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: snapshot for %s already exists", domain.ErrConcurrentModification,
				s.AsOfDate.Format(domain.DateLayout))
		}
		return err
	}

	return writeChildren(ctx, q, s)
}

// Update stores the snapshot if the stored version equals expectedVersion.
func (r *SnapshotRepository) Update(ctx context.Context, tx usecase.Transaction, s *domain.BalanceSheetSnapshot, expectedVersion int64) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE balance_sheet_snapshots SET
			financial_year = $3, status = $4,
			total_assets = $5, total_liabilities = $6, total_equity = $7, current_earnings = $8,
			is_balanced = $9, version = $10, next_note_number = $11, updated_at = $12, finalized_at = $13
		WHERE id = $1 AND tenant_id = $2 AND version = $14`,
		s.ID, s.TenantID, s.FinancialYear, string(s.Status),
		s.TotalAssets.String(), s.TotalLiabilities.String(), s.TotalEquity.String(), s.CurrentEarnings.String(),
		s.IsBalanced, s.Version, s.NextNoteNumber, s.UpdatedAt, s.FinalizedAt, expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: snapshot %s is no longer at version %d", domain.ErrConcurrentModification, s.ID, expectedVersion)
	}

	if _, err := q.Exec(ctx, `DELETE FROM balance_sheet_items WHERE snapshot_id = $1`, s.ID); err != nil {
		return err
	}
	if _, err := q.Exec(ctx, `DELETE FROM snapshot_notes WHERE snapshot_id = $1`, s.ID); err != nil {
		return err
	}

	return writeChildren(ctx, q, s)
}

func writeChildren(ctx context.Context, q querier, s *domain.BalanceSheetSnapshot) error {
	for _, it := range s.Items {
		if _, err := q.Exec(ctx, `
			INSERT INTO balance_sheet_items (snapshot_id, account_id, account_code, account_name, section_type, sub_section, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, it.AccountID, it.AccountCode, it.AccountName, string(it.SectionType), it.SubSection, it.Amount.String(),
		); err != nil {
			return err
		}
	}

	for _, n := range s.Notes {
		if _, err := q.Exec(ctx, `
			INSERT INTO snapshot_notes (snapshot_id, note_number, title, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			s.ID, n.NoteNumber, n.Title, n.Content, n.CreatedAt,
		); err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a snapshot with its items and notes.
func (r *SnapshotRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.BalanceSheetSnapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM balance_sheet_snapshots WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return r.load(ctx, r.db, row)
}

// GetByDate retrieves the snapshot for a date.
func (r *SnapshotRepository) GetByDate(ctx context.Context, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM balance_sheet_snapshots WHERE tenant_id = $1 AND as_of_date = $2`,
		tenantID, domain.DateOnly(asOf))
	return r.load(ctx, r.db, row)
}

// GetByIDForUpdate retrieves a snapshot and locks its row.
func (r *SnapshotRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, tenantID, id string) (*domain.BalanceSheetSnapshot, error) {
	q, err := inTx(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM balance_sheet_snapshots WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, id, tenantID)
	return r.load(ctx, q, row)
}

// GetByDateForUpdate retrieves the snapshot for a date and locks its row.
func (r *SnapshotRepository) GetByDateForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, asOf time.Time) (*domain.BalanceSheetSnapshot, error) {
	q, err := inTx(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM balance_sheet_snapshots WHERE tenant_id = $1 AND as_of_date = $2 FOR UPDATE`,
		tenantID, domain.DateOnly(asOf))
	return r.load(ctx, q, row)
}

// Delete removes a snapshot; items and notes cascade.
func (r *SnapshotRepository) Delete(ctx context.Context, tx usecase.Transaction, tenantID, id string) error {
	q, err := inTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `DELETE FROM balance_sheet_snapshots WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

// List returns snapshot headers, newest first. Items and notes are not loaded.
func (r *SnapshotRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*domain.BalanceSheetSnapshot, error) {
	rows, err := r.db.Query(ctx, `SELECT `+snapshotColumns+`
		FROM balance_sheet_snapshots
		WHERE tenant_id = $1
		ORDER BY as_of_date DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]*domain.BalanceSheetSnapshot, 0, limit)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

func (r *SnapshotRepository) load(ctx context.Context, q querier, row pgx.Row) (*domain.BalanceSheetSnapshot, error) {
	s, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}

	if err := loadItems(ctx, q, s); err != nil {
		return nil, err
	}
	if err := loadNotes(ctx, q, s); err != nil {
		return nil, err
	}
	return s, nil
}

func scanSnapshot(row pgx.Row) (*domain.BalanceSheetSnapshot, error) {
	var (
		s                                  domain.BalanceSheetSnapshot
		status                             string
		assets, liabilities, equity, earns string
	)
	if err := row.Scan(&s.ID, &s.TenantID, &s.AsOfDate, &s.FinancialYear, &status,
		&assets, &liabilities, &equity, &earns,
		&s.IsBalanced, &s.Version, &s.NextNoteNumber, &s.CreatedAt, &s.UpdatedAt, &s.FinalizedAt,
	); err != nil {
		return nil, err
	}
	s.Status = domain.SnapshotStatus(status)

	var err error
	if s.TotalAssets, err = parseDecimal(assets); err != nil {
		return nil, err
	}
	if s.TotalLiabilities, err = parseDecimal(liabilities); err != nil {
		return nil, err
	}
	if s.TotalEquity, err = parseDecimal(equity); err != nil {
		return nil, err
	}
	if s.CurrentEarnings, err = parseDecimal(earns); err != nil {
		return nil, err
	}
	return &s, nil
}

func loadItems(ctx context.Context, q querier, s *domain.BalanceSheetSnapshot) error {
	rows, err := q.Query(ctx, `
		SELECT account_id, account_code, account_name, section_type, sub_section, amount::text
		FROM balance_sheet_items
		WHERE snapshot_id = $1`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it              domain.BalanceSheetItem
			section, amount string
		)
		if err := rows.Scan(&it.AccountID, &it.AccountCode, &it.AccountName, &section, &it.SubSection, &amount); err != nil {
			return err
		}
		it.SectionType = domain.SectionType(section)
		if it.Amount, err = parseDecimal(amount); err != nil {
			return err
		}
		s.Items = append(s.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	domain.SortItems(s.Items)
	return nil
}

func loadNotes(ctx context.Context, q querier, s *domain.BalanceSheetSnapshot) error {
	rows, err := q.Query(ctx, `
		SELECT note_number, title, content, created_at
		FROM snapshot_notes
		WHERE snapshot_id = $1
		ORDER BY note_number`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.NoteNumber, &n.Title, &n.Content, &n.CreatedAt); err != nil {
			return err
		}
		s.Notes = append(s.Notes, n)
	}
	return rows.Err()
}

// ComparisonRepository implements usecase.ComparisonRepository.
type ComparisonRepository struct {
	db querier
}

// NewComparisonRepository creates a new ComparisonRepository.
func NewComparisonRepository(db querier) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// Create appends a comparison to the access log.
func (r *ComparisonRepository) Create(ctx context.Context, record *domain.ComparisonRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO comparison_log (id, tenant_id, current_period_id, previous_period_id, comparison_date, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.TenantID, record.CurrentPeriodID, record.PreviousPeriodID, record.ComparisonDate, payload,
	)
	return err
}
