package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
// All methods interpolate the table name into the query text, so every method
// first checks the name against the closed registry.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, user_id, payload, year_month, updated_at, deleted_at, sync_token, pending_sync`

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateOrUpdate upserts a row by id. On conflict every column is replaced,
// including the sync envelope.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, rec models.Record) error {
	table := rec.Table()
	if !models.Known(table) {
		return fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", table, err)
	}

	m := rec.Meta()
	date, yearMonth := models.IndexFields(rec)

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, payload, date, year_month, updated_at, deleted_at, sync_token, pending_sync)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id,
				payload = excluded.payload,
				date = excluded.date,
				year_month = excluded.year_month,
				updated_at = excluded.updated_at,
				deleted_at = excluded.deleted_at,
				sync_token = excluded.sync_token,
				pending_sync = excluded.pending_sync
	`, table)
	_, err = r.db.ExecContext(ctx, query,
		m.ID, nullIfEmpty(m.UserID), string(payload), nullIfEmpty(date), nullIfEmpty(yearMonth),
		nullIfEmpty(m.UpdatedAt), m.DeletedAt, m.SyncToken, m.PendingSync)
	if err != nil {
		return fmt.Errorf("failed to upsert %s row: %w", table, err)
	}
	return nil
}

// scanRecord rebuilds a typed row from one result row. The payload carries
// the entity fields; the envelope columns are authoritative for the sync
// fields because tombstoning and pending-clearing update columns only.
func scanRecord(table models.Table, rows interface{ Scan(dest ...any) error }) (models.Record, error) {
	var (
		id          string
		userID      sql.NullString
		payload     []byte
		yearMonth   sql.NullString
		updatedAt   sql.NullString
		deletedAt   sql.NullString
		syncToken   int64
		pendingSync bool
	)
	if err := rows.Scan(&id, &userID, &payload, &yearMonth, &updatedAt, &deletedAt, &syncToken, &pendingSync); err != nil {
		return nil, err
	}

	rec, err := models.NewRecord(table)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", table, err)
	}

	m := rec.Meta()
	m.ID = id
	m.UserID = userID.String
	m.UpdatedAt = updatedAt.String
	m.SyncToken = syncToken
	m.PendingSync = pendingSync
	m.DeletedAt = nil
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.String
	}
	if tx, ok := rec.(*models.Transaction); ok {
		tx.YearMonth = yearMonth.String
	}
	return rec, nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, table models.Table, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s rows: %w", table, err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(table, rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a row by id, tombstones included, or (nil, nil) when the
// id is unknown.
func (r *SQLiteRepository) GetByID(ctx context.Context, table models.Table, id string) (models.Record, error) {
	if !models.Known(table) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`select %s from %s where id=?`, selectColumns, table)
	row := r.db.QueryRowContext(ctx, query, id)

	rec, err := scanRecord(table, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", table, id, err)
	}
	return rec, nil
}

// GetAll lists all live rows of a table.
func (r *SQLiteRepository) GetAll(ctx context.Context, table models.Table) ([]models.Record, error) {
	if !models.Known(table) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`select %s from %s where deleted_at is null`, selectColumns, table)
	return r.queryRecords(ctx, table, query)
}

// GetByYearMonth lists live rows of a dated table for one month, newest first.
func (r *SQLiteRepository) GetByYearMonth(ctx context.Context, table models.Table, yearMonth string) ([]models.Record, error) {
	if !models.Known(table) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`select %s from %s where deleted_at is null and year_month=? order by date desc, id`, selectColumns, table)
	return r.queryRecords(ctx, table, query, yearMonth)
}

// GetAllPending returns rows flagged pending_sync=1, tombstones included.
func (r *SQLiteRepository) GetAllPending(ctx context.Context, table models.Table) ([]models.Record, error) {
	if !models.Known(table) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`select %s from %s where pending_sync=1`, selectColumns, table)
	return r.queryRecords(ctx, table, query)
}

// CountPending counts rows awaiting push.
func (r *SQLiteRepository) CountPending(ctx context.Context, table models.Table) (int, error) {
	if !models.Known(table) {
		return 0, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	var n int
	query := fmt.Sprintf(`select count(*) from %s where pending_sync=1`, table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending %s rows: %w", table, err)
	}
	return n, nil
}

// ClearPending resets the pending flag for the given ids.
func (r *SQLiteRepository) ClearPending(ctx context.Context, table models.Table, ids []string) error {
	if !models.Known(table) {
		return fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`update %s set pending_sync=0 where id in (%s)`, table, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear pending %s rows: %w", table, err)
	}
	return nil
}

// DeleteByID soft-deletes a row locally (pending tombstone). It expects
// exactly one live row to be affected.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, table models.Table, id string, ts string) error {
	if !models.Known(table) {
		return fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`update %s set deleted_at=?, updated_at=?, pending_sync=1 where id=? and deleted_at is null`, table)
	res, err := r.db.ExecContext(ctx, query, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s row: %w", table, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// TombstoneByID applies a remote deletion: deleted_at is set, the pending
// flag drops, every other column stays. Unknown ids affect zero rows and
// are not an error.
func (r *SQLiteRepository) TombstoneByID(ctx context.Context, table models.Table, id string, ts string) error {
	if !models.Known(table) {
		return fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	query := fmt.Sprintf(`update %s set deleted_at=?, pending_sync=0 where id=?`, table)
	if _, err := r.db.ExecContext(ctx, query, ts, id); err != nil {
		return fmt.Errorf("failed to tombstone %s row: %w", table, err)
	}
	return nil
}
