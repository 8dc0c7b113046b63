package testsupport

import (
	"testing"

	"songforge/internal/config"
	"songforge/internal/storage"
)

// MustOpenDB opens the songforge database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *storage.DB {
	t.Helper()

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
