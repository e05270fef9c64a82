// Package client contains client-side building blocks for Kopeck.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the sync backend: Login/Refresh, Ping, QueryChanges and Upsert.
//  2. A concrete REST implementation (see HTTPClient) that attaches the
//     access token to every call through a TokenSource and maps HTTP status
//     codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations)
//     wiring an SQLite replica and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrLocalDataNotAvailable.
//
// Concurrency & Contexts
//
// Implementations should be safe for concurrent use unless stated otherwise.
// All operations accept context.Context and must honor cancellation/timeouts.
//
// See Also
//
//   - Interface:  Client
//   - REST impl:  HTTPClient
//   - DB helpers: InitDatabase, RunMigrations
//   - Errors:     ErrUnavailable, ErrUnauthorized, ErrLocalDataNotAvailable
package client
