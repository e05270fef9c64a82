package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type authFakeClient struct {
	client.Client

	loginSession   *models.Session
	loginErr       error
	refreshSession *models.Session
	refreshErr     error
	refreshCalls   int
}

func (f *authFakeClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	s := *f.loginSession
	return &s, nil
}

func (f *authFakeClient) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	s := *f.refreshSession
	return &s, nil
}

func (f *authFakeClient) Close() error { return nil }

func validSession(expiresAt time.Time) *models.Session {
	return &models.Session{
		UserID:       "u1",
		Email:        "me@example.com",
		AccessToken:  "at1",
		RefreshToken: "rt1",
		ExpiresAt:    expiresAt,
	}
}

func newAuth(t *testing.T, repos *client.Repositories, fc *authFakeClient) *authService {
	t.Helper()
	svc := NewAuthService(fc, repos.DB).(*authService)
	svc.now = func() time.Time { return authNow }
	return svc
}

func TestLogin_PersistsSession(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{loginSession: validSession(authNow.Add(time.Hour))}
	svc := newAuth(t, repos, fc)

	ctx := context.Background()
	require.NoError(t, svc.Login(ctx, "me@example.com", "secret"))

	assert.Equal(t, "u1", svc.CurrentUserID())
	assert.Equal(t, "me@example.com", svc.CurrentEmail())

	stored := oneRow[[]byte](t, repos, `SELECT value FROM metadata WHERE key='session'`)
	assert.Contains(t, string(stored), "rt1")
}

func TestLogin_Error(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{loginErr: client.ErrUnauthorized}
	svc := newAuth(t, repos, fc)

	err := svc.Login(context.Background(), "me@example.com", "wrong")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Empty(t, svc.CurrentUserID())
}

func TestRestore_AfterRestart(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{loginSession: validSession(authNow.Add(time.Hour))}
	ctx := context.Background()

	first := newAuth(t, repos, fc)
	require.NoError(t, first.Login(ctx, "me@example.com", "secret"))

	// a new process over the same replica resumes the identity offline
	second := newAuth(t, repos, &authFakeClient{})
	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, "u1", second.CurrentUserID())

	token, err := second.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at1", token)
}

func TestRestore_NoSession(t *testing.T) {
	repos := setupRepos(t)
	svc := newAuth(t, repos, &authFakeClient{})

	require.NoError(t, svc.Restore(context.Background()))
	assert.Empty(t, svc.CurrentUserID())
}

func TestLogout(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{loginSession: validSession(authNow.Add(time.Hour))}
	svc := newAuth(t, repos, fc)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "me@example.com", "secret"))
	require.NoError(t, svc.Logout(ctx))

	assert.Empty(t, svc.CurrentUserID())

	_, err := svc.AccessToken(ctx)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	n := oneRow[int](t, repos, `SELECT COUNT(*) FROM metadata WHERE key='session'`)
	assert.Zero(t, n)
}

func TestAccessToken_FreshTokenSkipsRefresh(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{loginSession: validSession(authNow.Add(time.Hour))}
	svc := newAuth(t, repos, fc)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "me@example.com", "secret"))

	token, err := svc.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at1", token)
	assert.Zero(t, fc.refreshCalls)
}

func TestAccessToken_RefreshesNearExpiry(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{
		// expires inside the refresh window
		loginSession: validSession(authNow.Add(10 * time.Second)),
		refreshSession: &models.Session{
			UserID:       "u1",
			AccessToken:  "at2",
			RefreshToken: "rt2",
			ExpiresAt:    authNow.Add(time.Hour),
		},
	}
	svc := newAuth(t, repos, fc)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "me@example.com", "secret"))

	token, err := svc.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at2", token)
	assert.Equal(t, 1, fc.refreshCalls)

	// rotation survives a restart
	second := newAuth(t, repos, &authFakeClient{})
	require.NoError(t, second.Restore(ctx))
	stored := oneRow[[]byte](t, repos, `SELECT value FROM metadata WHERE key='session'`)
	assert.Contains(t, string(stored), "rt2")
}

func TestAccessToken_RefreshError(t *testing.T) {
	repos := setupRepos(t)
	fc := &authFakeClient{
		loginSession: validSession(authNow.Add(5 * time.Second)),
		refreshErr:   client.ErrUnauthorized,
	}
	svc := newAuth(t, repos, fc)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "me@example.com", "secret"))

	_, err := svc.AccessToken(ctx)
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestAccessToken_NoSession(t *testing.T) {
	repos := setupRepos(t)
	svc := newAuth(t, repos, &authFakeClient{})

	_, err := svc.AccessToken(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestFillFromClaims(t *testing.T) {
	exp := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-from-token",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	s := &models.Session{AccessToken: token}
	fillFromClaims(s)

	assert.Equal(t, "u-from-token", s.UserID)
	assert.True(t, s.ExpiresAt.Equal(exp))

	// explicit fields are not overwritten
	s2 := &models.Session{AccessToken: token, UserID: "explicit", ExpiresAt: exp.Add(time.Hour)}
	fillFromClaims(s2)
	assert.Equal(t, "explicit", s2.UserID)
	assert.True(t, s2.ExpiresAt.Equal(exp.Add(time.Hour)))

	// garbage tokens leave the session alone
	s3 := &models.Session{AccessToken: "not-a-jwt"}
	fillFromClaims(s3)
	assert.Empty(t, s3.UserID)
}
