package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/kopeck/internal/client/migrations"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/records"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/settings"
	"github.com/pressly/goose/v3"
)

// Repositories bundles the replica stores plus the handle services need to
// open transactions.
type Repositories struct {
	DB       *sql.DB
	Records  records.Repository
	Settings settings.Repository
	Metadata metadata.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// WAL keeps readers unblocked while sync writes; busy_timeout rides out
	// the autosync watcher touching the file at the same time.
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA foreign_keys=ON`,
		`PRAGMA synchronous=NORMAL`,
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	repos := &Repositories{
		DB:       db,
		Records:  records.NewSQLiteRepository(db),
		Settings: settings.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}
	return repos, nil
}
