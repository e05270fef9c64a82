package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/logging"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// setupRepos opens a fresh replica with the real migrations applied.
func setupRepos(t *testing.T) *client.Repositories {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "app.db")
	repos, err := client.InitDatabase(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.DB.Close() })
	return repos
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeAuth stubs the identity used by the sync engine.
type fakeAuth struct {
	AuthService
	userID string
}

func (f *fakeAuth) CurrentUserID() string { return f.userID }

// fakeClient captures pushes and serves canned pull responses.
type fakeClient struct {
	client.Client

	mu      sync.Mutex
	upserts map[models.Table][][]json.RawMessage

	changes   map[models.Table][]json.RawMessage
	upsertErr map[models.Table]error
	queryErr  map[models.Table]error

	queryCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		upserts:   make(map[models.Table][][]json.RawMessage),
		changes:   make(map[models.Table][]json.RawMessage),
		upsertErr: make(map[models.Table]error),
		queryErr:  make(map[models.Table]error),
	}
}

func (f *fakeClient) Upsert(ctx context.Context, table models.Table, rows []json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[table]; err != nil {
		return err
	}
	f.upserts[table] = append(f.upserts[table], rows)
	return nil
}

func (f *fakeClient) QueryChanges(ctx context.Context, table models.Table, afterToken int64) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if err := f.queryErr[table]; err != nil {
		return nil, err
	}
	var out []json.RawMessage
	for _, raw := range f.changes[table] {
		var probe struct {
			SyncToken int64 `json:"sync_token"`
		}
		_ = json.Unmarshal(raw, &probe)
		if probe.SyncToken > afterToken {
			out = append(out, raw)
		}
	}
	return out, nil
}

// pushedRows flattens every batch pushed to a table.
func (f *fakeClient) pushedRows(table models.Table) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, batch := range f.upserts[table] {
		for _, raw := range batch {
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err == nil {
				out = append(out, m)
			}
		}
	}
	return out
}

func oneRow[T any](t *testing.T, repos *client.Repositories, q string, args ...any) T {
	t.Helper()
	var out T
	require.NoError(t, repos.DB.QueryRow(q, args...).Scan(&out))
	return out
}
