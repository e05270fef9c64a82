// Package models defines the synced row types of the finance tracker and the
// closed registry of tables the sync engine operates on.
package models

import "time"

// SyncFields is the common sync envelope embedded by every synced row.
//
// PendingSync and the derived index fields are local-only: they are excluded
// from JSON so an outgoing payload can never carry them, and the repositories
// restore them from their own columns on read.
type SyncFields struct {
	// ID is the globally unique, client-generated identifier of the record.
	ID string `json:"id" validate:"required"`

	// UserID is the owning user, stamped on push for owner-attributed tables.
	UserID string `json:"user_id,omitempty"`

	// UpdatedAt is the last-write timestamp (RFC 3339), the LWW tie-breaker.
	UpdatedAt string `json:"updated_at,omitempty"`

	// SyncToken is the server-assigned monotonic change token, used only as
	// the delta-pull cursor. Pushes zero it so it is never sent upstream.
	SyncToken int64 `json:"sync_token,omitempty"`

	// DeletedAt marks the row as a tombstone when non-nil.
	DeletedAt *string `json:"deleted_at,omitempty"`

	// PendingSync flags local changes not yet confirmed by the remote store.
	PendingSync bool `json:"-"`
}

// Meta returns the embedded sync envelope. Promoted through embedding, it is
// how generic code reaches the sync fields of any typed row.
func (f *SyncFields) Meta() *SyncFields { return f }

// IsDeleted reports whether the row is a tombstone.
func (f *SyncFields) IsDeleted() bool { return f.DeletedAt != nil }

// Record is implemented by every synced row type.
type Record interface {
	Meta() *SyncFields
	Table() Table
}

// Timestamp formats t the way updated_at/deleted_at values are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseUpdatedAt parses an updated_at value leniently: any parse failure
// yields the zero time, which sorts before every valid timestamp.
func ParseUpdatedAt(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// YearMonth derives the local year_month index value from a date string:
// its first seven bytes ("2024-01-15" -> "2024-01"). Shorter input is
// returned unchanged.
func YearMonth(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}
