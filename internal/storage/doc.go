// Package storage owns the shared SQLite connection, schema management,
// and busy-retry helpers used by the store packages.
package storage
