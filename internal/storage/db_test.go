package storage_test

import (
	"context"
	"testing"

	"songforge/internal/storage"
	"songforge/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"token_ledger", "voice_profiles", "sessions", "human_requests"} {
		var name string
		err := db.Handle().QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestReopenPassesVersionCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = storage.Open(cfg)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var version int
	if err := db.Handle().QueryRowContext(context.Background(),
		"SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != 1 {
		t.Fatalf("schema version = %d", version)
	}
}
