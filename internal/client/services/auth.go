// Package services contains application services for the Kopeck client.
// This file defines the authentication service: sign-in against the backend,
// session persistence for offline restarts, and access-token refresh.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/kopeck/internal/dbx"
	"github.com/golang-jwt/jwt/v5"
)

// sessionKey is the metadata key holding the serialized session.
const sessionKey = "session"

// refreshAhead is how long before expiry the access token gets renewed.
const refreshAhead = 30 * time.Second

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the backend and persist the session.
//   - Restore: load a previously persisted session at startup.
//   - Logout: drop the session locally.
//   - CurrentUserID/CurrentEmail: identity of the signed-in user, empty when
//     signed out.
//   - AccessToken: a valid token for API calls, refreshed ahead of expiry.
//   - Ping: check backend liveness.
//   - Close: release underlying client resources.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, email, password string) error
	Restore(ctx context.Context) error
	Logout(ctx context.Context) error
	CurrentUserID() string
	CurrentEmail() string
	AccessToken(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote Client and the
// local metadata store for the persisted session.
type authService struct {
	client client.Client
	db     *sql.DB

	mu      sync.RWMutex
	session *models.Session

	now func() time.Time
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, db: db, now: time.Now}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// fillFromClaims completes missing session fields from the unverified JWT
// claims. The backend signs the token; the client only reads sub and exp.
func fillFromClaims(s *models.Session) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return
	}
	if s.UserID == "" {
		s.UserID = claims.Subject
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
}

// Login authenticates against the backend and persists the session so the
// app can restart offline with the same identity.
func (a *authService) Login(ctx context.Context, email, password string) error {
	session, err := a.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	fillFromClaims(session)

	if err := a.saveSession(ctx, session); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	return nil
}

// loadSession reads the persisted session from the metadata store. Returns
// client.ErrLocalDataNotAvailable when no session has been saved.
func (a *authService) loadSession(ctx context.Context) (*models.Session, error) {
	value, err := a.getMetadataRepo().Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("session loading error: %w", err)
	}
	if value == nil {
		return nil, client.ErrLocalDataNotAvailable
	}

	session := &models.Session{}
	if err := json.Unmarshal(value, session); err != nil {
		return nil, fmt.Errorf("session decoding error: %w", err)
	}
	fillFromClaims(session)
	return session, nil
}

// Restore loads the persisted session, if any. A missing session is not an
// error; the app simply stays signed out.
func (a *authService) Restore(ctx context.Context) error {
	session, err := a.loadSession(ctx)
	if errors.Is(err, client.ErrLocalDataNotAvailable) {
		return nil
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	return nil
}

// Logout drops the session locally. Replica data stays on disk.
func (a *authService) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()

	return a.getMetadataRepo().Delete(ctx, sessionKey)
}

func (a *authService) CurrentUserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.UserID
}

func (a *authService) CurrentEmail() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.Email
}

// AccessToken returns a valid access token, refreshing it when it is about
// to expire. Implements client.TokenSource.
func (a *authService) AccessToken(ctx context.Context) (string, error) {
	a.mu.RLock()
	session := a.session
	a.mu.RUnlock()

	if session == nil {
		return "", client.ErrUnauthorized
	}
	if !session.ExpiresWithin(a.now(), refreshAhead) {
		return session.AccessToken, nil
	}
	return a.refresh(ctx, session.RefreshToken)
}

// refresh rotates the session via the refresh token. Concurrent callers may
// both refresh; the backend tolerates it and the later write wins.
func (a *authService) refresh(ctx context.Context, refreshToken string) (string, error) {
	session, err := a.client.Refresh(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("token refresh error: %w", err)
	}
	fillFromClaims(session)

	if err := a.saveSession(ctx, session); err != nil {
		return "", fmt.Errorf("session saving error: %w", err)
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	return session.AccessToken, nil
}

// saveSession persists the session in a single transaction.
func (a *authService) saveSession(ctx context.Context, session *models.Session) error {
	value, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Set(ctx, sessionKey, value)
	})
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
