package settings

import (
	"context"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// Repository persists per-user local settings, including the delta-pull
// cursor (last_sync_token).
type Repository interface {
	// Get returns the settings row for a user, or (nil, nil) when the user
	// has no row yet.
	Get(ctx context.Context, userID string) (*models.UserSettings, error)

	// GetCursor returns the last seen change token, zero for a fresh user.
	GetCursor(ctx context.Context, userID string) (int64, error)

	// SetCursor advances the change token, creating the row with defaults
	// on first use. The stored token never moves backwards.
	SetCursor(ctx context.Context, userID string, token int64) error

	// SetCurrency updates the display currency, creating the row on first use.
	SetCurrency(ctx context.Context, userID string, currency string) error
}
