package persistence_test

import (
	"context"
	"testing"

	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/monitor"
	"rfidmonitor/internal/persistence"
	"rfidmonitor/internal/registry"
	"rfidmonitor/internal/testsupport"
)

func TestModuleRegistersCapabilities(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reg := registry.New()
	host := &monitor.Host{Config: cfg, Logger: logging.NewNop(), Registry: reg, RunID: "test"}

	mod := persistence.NewModule(store)
	if err := mod.Init(context.Background(), host); err != nil {
		t.Fatalf("Init: %v", err)
	}

	insert, err := registry.LookupDefault[func(map[string]any) error](reg, registry.CategoryPersistence)
	if err != nil {
		t.Fatalf("LookupDefault: %v", err)
	}
	if err := insert(map[string]any{"code": "E200", "antenna": 1.0}); err != nil {
		t.Fatalf("insertObject: %v", err)
	}

	getAll, err := registry.Lookup[func() ([]*persistence.Record, error)](reg, persistence.GetAllName)
	if err != nil {
		t.Fatalf("Lookup getAll: %v", err)
	}
	records, err := getAll()
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(records) != 1 || records[0].Code != "E200" {
		t.Fatalf("unexpected records: %+v", records)
	}

	markSynced, err := registry.Lookup[func([]int64) error](reg, persistence.MarkSyncedName)
	if err != nil {
		t.Fatalf("Lookup markSynced: %v", err)
	}
	if err := markSynced([]int64{records[0].ID}); err != nil {
		t.Fatalf("markSynced: %v", err)
	}
	stored, err := store.GetByID(context.Background(), records[0].ID)
	if err != nil || stored == nil || !stored.Synced {
		t.Fatalf("expected record to be synced, got %+v err=%v", stored, err)
	}

	if services := reg.Services(registry.CategoryPersistence); len(services) != 3 {
		t.Fatalf("expected three persistence capabilities, got %d", len(services))
	}
}
