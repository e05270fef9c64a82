package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the settings row for a user, or (nil, nil) when absent.
func (r *SQLiteRepository) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	s := &models.UserSettings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, last_sync_token, currency FROM user_settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.LastSyncToken, &s.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for user %s: %w", userID, err)
	}
	return s, nil
}

// GetCursor returns the last seen change token, zero for a fresh user.
func (r *SQLiteRepository) GetCursor(ctx context.Context, userID string) (int64, error) {
	var token int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_sync_token FROM user_settings WHERE user_id = ?`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get sync cursor: %w", err)
	}
	return token, nil
}

// SetCursor advances the change token. MAX in the upsert keeps the cursor
// monotonic even if callers race; a first-time row gets the column defaults
// for everything else.
func (r *SQLiteRepository) SetCursor(ctx context.Context, userID string, token int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, last_sync_token) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_sync_token = MAX(last_sync_token, excluded.last_sync_token)
	`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to set sync cursor: %w", err)
	}
	return nil
}

// SetCurrency updates the display currency, creating the row on first use.
func (r *SQLiteRepository) SetCurrency(ctx context.Context, userID string, currency string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, currency) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET currency = excluded.currency
	`, userID, currency)
	if err != nil {
		return fmt.Errorf("failed to set currency: %w", err)
	}
	return nil
}
