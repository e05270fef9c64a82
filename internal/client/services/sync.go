// This file defines the sync engine: push of pending local changes, token
// based delta pull, and the conflict rule shared with the realtime channel.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/records"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/settings"
	"github.com/dmitrijs2005/kopeck/internal/dbx"
	"github.com/dmitrijs2005/kopeck/internal/logging"
)

// SyncService drives bidirectional synchronization of the local replica.
//
// Contract:
//   - Sync: one full cycle, push then pull. Never fails the caller; every
//     error is logged and swallowed. Re-entrant calls are dropped while a
//     cycle runs. A signed-out user makes it a silent no-op.
//   - IsSyncing: whether a cycle is running right now.
//   - OnSyncChange: observer of cycle start (true) and end (false); the
//     returned function unsubscribes it.
//   - ApplyRemoteChange: apply one row delivered by the realtime channel
//     under the same conflict rule as pull.
//   - ApplyRemoteDelete: apply a remote deletion as a local tombstone,
//     unconditionally.
//   - Cursor: the pull cursor of the signed-in user, 0 when fresh.
type SyncService interface {
	Sync(ctx context.Context)
	IsSyncing() bool
	OnSyncChange(fn func(active bool)) (unsubscribe func())
	ApplyRemoteChange(ctx context.Context, table models.Table, row json.RawMessage) error
	ApplyRemoteDelete(ctx context.Context, table models.Table, row json.RawMessage) error
	Cursor(ctx context.Context) (int64, error)
}

type syncService struct {
	client client.Client
	auth   AuthService
	db     *sql.DB
	log    logging.Logger

	syncing atomic.Bool

	mu           sync.Mutex
	observers    map[int]func(bool)
	nextObserver int

	now func() time.Time
}

// NewSyncService constructs a SyncService bound to the given API client,
// auth service and DB.
func NewSyncService(client client.Client, auth AuthService, db *sql.DB, log logging.Logger) SyncService {
	return &syncService{client: client, auth: auth, db: db, log: log, now: time.Now}
}

func (s *syncService) getRecordsRepo() records.Repository {
	return records.NewSQLiteRepository(s.db)
}

func (s *syncService) getSettingsRepo() settings.Repository {
	return settings.NewSQLiteRepository(s.db)
}

// IsSyncing reports whether a cycle is running right now.
func (s *syncService) IsSyncing() bool {
	return s.syncing.Load()
}

// OnSyncChange registers an observer of cycle start/end and returns its
// unsubscribe function. Observers run on the syncing goroutine; a panicking
// observer is logged and does not stop the cycle or its siblings.
func (s *syncService) OnSyncChange(fn func(active bool)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observers == nil {
		s.observers = make(map[int]func(bool))
	}
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *syncService) notify(ctx context.Context, active bool) {
	s.mu.Lock()
	observers := make([]func(bool), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		s.notifyOne(ctx, fn, active)
	}
}

func (s *syncService) notifyOne(ctx context.Context, fn func(bool), active bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "sync observer panicked", "panic", r)
		}
	}()
	fn(active)
}

// Cursor returns the pull cursor of the signed-in user, 0 when fresh or
// signed out.
func (s *syncService) Cursor(ctx context.Context) (int64, error) {
	userID := s.auth.CurrentUserID()
	if userID == "" {
		return 0, nil
	}
	return s.getSettingsRepo().GetCursor(ctx, userID)
}

// Sync runs one full cycle: pending local changes go up first, then the
// delta since the stored cursor comes down. Tables fail independently in
// both phases. A panic inside the cycle is logged and does not escape.
func (s *syncService) Sync(ctx context.Context) {
	userID := s.auth.CurrentUserID()
	if userID == "" {
		return
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "sync cycle panicked", "panic", r)
		}
		s.syncing.Store(false)
		s.notify(ctx, false)
	}()
	s.notify(ctx, true)

	s.pushPending(ctx, userID)
	s.pullDelta(ctx, userID)
}

// pushPending uploads every pending row, table by table. A table that fails
// keeps its pending flags and is retried next cycle.
func (s *syncService) pushPending(ctx context.Context, userID string) {
	for _, table := range models.Tables() {
		if err := s.pushTable(ctx, table, userID); err != nil {
			s.log.Warn(ctx, "push failed", "table", table, "error", err)
		}
	}
}

func (s *syncService) pushTable(ctx context.Context, table models.Table, userID string) error {
	pending, err := s.getRecordsRepo().GetAllPending(ctx, table)
	if err != nil {
		return fmt.Errorf("error retrieving pending rows: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	stamp := models.Timestamp(s.now())
	rows := make([]json.RawMessage, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, rec := range pending {
		m := rec.Meta()
		// The outgoing copy gets a fresh write stamp and owner, and loses
		// the change token; local columns stay as they are until the echo
		// comes back through pull.
		m.UpdatedAt = stamp
		m.SyncToken = 0
		if models.AttributesOwner(table) {
			m.UserID = userID
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("error encoding row %s: %w", m.ID, err)
		}
		rows = append(rows, data)
		ids = append(ids, m.ID)
	}

	if err := s.client.Upsert(ctx, table, rows); err != nil {
		return fmt.Errorf("error uploading rows: %w", err)
	}

	// Confirmed by the backend: drop the pending flags in one transaction.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return records.NewSQLiteRepository(tx).ClearPending(ctx, table, ids)
	})
	if err != nil {
		return fmt.Errorf("error clearing pending flags: %w", err)
	}

	s.log.Info(ctx, "pushed pending rows", "table", table, "count", len(ids))
	return nil
}

// pullDelta downloads rows changed since the cursor and advances it once at
// the end of the cycle, after the rows are durably stored.
func (s *syncService) pullDelta(ctx context.Context, userID string) {
	settingsRepo := s.getSettingsRepo()
	cursor, err := settingsRepo.GetCursor(ctx, userID)
	if err != nil {
		s.log.Warn(ctx, "pull skipped", "error", err)
		return
	}

	maxToken := cursor
	for _, table := range models.Tables() {
		token, err := s.pullTable(ctx, table, cursor)
		if err != nil {
			s.log.Warn(ctx, "pull failed", "table", table, "error", err)
			continue
		}
		if token > maxToken {
			maxToken = token
		}
	}

	if maxToken > cursor {
		if err := settingsRepo.SetCursor(ctx, userID, maxToken); err != nil {
			s.log.Warn(ctx, "failed to advance sync cursor", "error", err)
			return
		}
		s.log.Info(ctx, "sync cursor advanced", "from", cursor, "to", maxToken)
	}
}

// tokenProbe extracts the change token even from rows the typed decoder
// rejects, so a malformed row cannot pin the cursor forever.
type tokenProbe struct {
	SyncToken int64 `json:"sync_token"`
}

// pullTable fetches and applies one table's delta. The returned token is
// the highest one fully processed: applied, rejected by the conflict rule,
// or skipped as malformed. A storage error stops the table and drops its
// token for the cycle; the shared cursor still follows the highest token
// among the tables that completed.
func (s *syncService) pullTable(ctx context.Context, table models.Table, after int64) (int64, error) {
	rows, err := s.client.QueryChanges(ctx, table, after)
	if err != nil {
		return 0, fmt.Errorf("error querying changes: %w", err)
	}

	var maxToken int64
	applied := 0
	for _, raw := range rows {
		rec, err := models.DecodeRecord(table, raw)
		if err != nil {
			s.log.Warn(ctx, "skipping malformed row", "table", table, "error", err)
			var probe tokenProbe
			if jsonErr := json.Unmarshal(raw, &probe); jsonErr == nil && probe.SyncToken > maxToken {
				maxToken = probe.SyncToken
			}
			continue
		}

		ok, err := s.applyIncoming(ctx, rec)
		if err != nil {
			return maxToken, fmt.Errorf("error applying row %s: %w", rec.Meta().ID, err)
		}
		if ok {
			applied++
		}
		if rec.Meta().SyncToken > maxToken {
			maxToken = rec.Meta().SyncToken
		}
	}

	if len(rows) > 0 {
		s.log.Info(ctx, "pulled rows", "table", table, "received", len(rows), "applied", applied)
	}
	return maxToken, nil
}

// applyIncoming applies one remote row under the conflict rule and reports
// whether it was stored. The rule: only a pending local row competes, and
// it wins unless the remote write stamp is strictly newer. Accepted rows
// are stored as already synced.
func (s *syncService) applyIncoming(ctx context.Context, rec models.Record) (bool, error) {
	accepted := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)

		local, err := repo.GetByID(ctx, rec.Table(), rec.Meta().ID)
		if err != nil {
			return err
		}
		if local != nil && local.Meta().PendingSync {
			localT := models.ParseUpdatedAt(local.Meta().UpdatedAt)
			remoteT := models.ParseUpdatedAt(rec.Meta().UpdatedAt)
			if !localT.Before(remoteT) {
				return nil // local wins, remote row dropped
			}
		}

		rec.Meta().PendingSync = false
		if err := repo.CreateOrUpdate(ctx, rec); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	return accepted, err
}

// ApplyRemoteChange applies one row delivered by the realtime channel.
// It shares the conflict rule with pull.
func (s *syncService) ApplyRemoteChange(ctx context.Context, table models.Table, row json.RawMessage) error {
	rec, err := models.DecodeRecord(table, row)
	if err != nil {
		return err
	}

	accepted, err := s.applyIncoming(ctx, rec)
	if err != nil {
		return fmt.Errorf("error applying realtime row: %w", err)
	}
	if !accepted {
		s.log.Info(ctx, "realtime row lost to pending local change", "table", table, "id", rec.Meta().ID)
	}
	return nil
}

// idProbe extracts the row id from a deletion event payload.
type idProbe struct {
	ID string `json:"id"`
}

// ApplyRemoteDelete turns a remote deletion into a local tombstone stamped
// with the application time. No conflict check: deletions always win.
// Unknown ids are a no-op; nothing is ever physically removed.
func (s *syncService) ApplyRemoteDelete(ctx context.Context, table models.Table, row json.RawMessage) error {
	var probe idProbe
	if err := json.Unmarshal(row, &probe); err != nil {
		return fmt.Errorf("error decoding deletion: %w", err)
	}
	if probe.ID == "" {
		return fmt.Errorf("deletion without id in table %s", table)
	}

	ts := models.Timestamp(s.now())
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return records.NewSQLiteRepository(tx).TombstoneByID(ctx, table, probe.ID, ts)
	})
	if err != nil {
		return fmt.Errorf("error applying realtime deletion: %w", err)
	}
	return nil
}
