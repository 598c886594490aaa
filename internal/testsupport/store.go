package testsupport

import (
	"context"
	"testing"

	"rfidmonitor/internal/config"
	"rfidmonitor/internal/persistence"
)

// MustOpenStore opens a persistence.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *persistence.Store {
	t.Helper()

	store, err := persistence.Open(cfg)
	if err != nil {
		t.Fatalf("persistence.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertRecord stores a record with the given code and returns it.
func InsertRecord(t testing.TB, store *persistence.Store, code string, antenna int) *persistence.Record {
	t.Helper()

	rec := &persistence.Record{Code: code, Device: "/dev/ttyUSB0", Antenna: antenna}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return rec
}
