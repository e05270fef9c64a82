// Package cli provides the interactive Kopeck command-line client.
//
// It wires configuration, the local replica, API services, the realtime
// channel and an interactive REPL that works both online and offline.
// Typical flow: restore the persisted session, start the connectivity
// watcher and sync ticker, then execute user commands.
//
// Key features:
//   - Login / Logout against the backend, with the session surviving restarts
//   - Record transactions and categories offline; they sync when possible
//   - List / Summary over the local replica
//   - Manual sync and a status view of the engine
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
