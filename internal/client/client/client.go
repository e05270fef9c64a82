package client

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// TokenSource supplies a valid access token for authenticated calls.
// The auth service implements it and refreshes the token ahead of expiry.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is the API contract to talk to the sync backend.
type Client interface {
	Close() error

	// Login exchanges credentials for a session.
	Login(ctx context.Context, email, password string) (*models.Session, error)

	// Refresh exchanges a refresh token for a new session.
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)

	// Ping probes backend reachability.
	Ping(ctx context.Context) error

	// QueryChanges returns all rows of a table with a change token greater
	// than afterToken, in ascending token order. Rows stay raw JSON; the
	// models package is the decoding boundary.
	QueryChanges(ctx context.Context, table models.Table, afterToken int64) ([]json.RawMessage, error)

	// Upsert pushes a batch of rows to a table, merging by id.
	Upsert(ctx context.Context, table models.Table, rows []json.RawMessage) error

	// SetTokenSource installs the supplier of access tokens for
	// authenticated calls. Login and Refresh work without one.
	SetTokenSource(ts TokenSource)
}
