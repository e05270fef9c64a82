package records

import (
	"context"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// Repository describes the replica-store operations shared by every synced
// table. Implementations are backed by the local SQLite database; the table
// argument must belong to the closed set in models.Tables.
type Repository interface {
	// CreateOrUpdate upserts a typed row by id, replacing the payload and
	// the whole sync envelope.
	CreateOrUpdate(ctx context.Context, rec models.Record) error

	// GetByID returns a row by id, tombstones included, or (nil, nil) when
	// the id is unknown. Conflict resolution needs to see deleted rows.
	GetByID(ctx context.Context, table models.Table, id string) (models.Record, error)

	// GetAll lists all live rows of a table.
	GetAll(ctx context.Context, table models.Table) ([]models.Record, error)

	// GetByYearMonth lists live rows of a dated table for one month.
	GetByYearMonth(ctx context.Context, table models.Table, yearMonth string) ([]models.Record, error)

	// GetAllPending lists rows with unsynchronized local changes, tombstones
	// included so deletions propagate.
	GetAllPending(ctx context.Context, table models.Table) ([]models.Record, error)

	// CountPending counts rows awaiting push.
	CountPending(ctx context.Context, table models.Table) (int, error)

	// ClearPending marks the given ids as confirmed by the remote store.
	ClearPending(ctx context.Context, table models.Table, ids []string) error

	// DeleteByID soft-deletes a row locally: it becomes a pending tombstone
	// stamped with ts. It expects exactly one live row to be affected.
	DeleteByID(ctx context.Context, table models.Table, id string, ts string) error

	// TombstoneByID applies a remote deletion: the row keeps its fields but
	// gets deleted_at=ts and loses its pending flag. Unknown ids are a no-op.
	TombstoneByID(ctx context.Context, table models.Table, id string, ts string) error
}
