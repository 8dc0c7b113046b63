// Package session is the generation session state machine: intake,
// voice check, key selection, preview, and commit, persisted in SQLite
// with optimistic status-guarded transitions.
package session
