package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/monitor"
	"rfidmonitor/internal/registry"
)

// Capability names published by the persistence module.
const (
	InsertObjectName = "persistence.insertObject"
	GetAllName       = "persistence.getAll"
	MarkSyncedName   = "persistence.markSynced"
)

// Module publishes a Store to the other monitor modules.
type Module struct {
	store  *Store
	ctx    context.Context
	logger *slog.Logger
}

// NewModule wraps store as a monitor module.
func NewModule(store *Store) *Module {
	return &Module{store: store, ctx: context.Background(), logger: logging.NewNop()}
}

func (m *Module) Name() string { return "persistence" }

// Init registers the store capabilities and makes insertObject the
// persistence default.
func (m *Module) Init(ctx context.Context, host *monitor.Host) error {
	m.ctx = ctx
	m.logger = logging.NewComponentLogger(host.Logger, "persistence")

	capabilities := []struct {
		name string
		fn   any
	}{
		{InsertObjectName, m.insertObject},
		{GetAllName, m.getAll},
		{MarkSyncedName, m.markSynced},
	}
	for _, c := range capabilities {
		if err := host.Registry.Register(c.name, registry.CategoryPersistence, c.fn); err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
	}
	host.Registry.SetDefault(registry.CategoryPersistence, InsertObjectName)
	m.logger.Debug("record store ready", logging.String("db", m.store.Path()))
	return nil
}

func (m *Module) insertObject(payload map[string]any) error {
	rec, err := RecordFromPayload(payload)
	if err != nil {
		return err
	}
	if err := m.store.Insert(m.ctx, &rec); err != nil {
		return err
	}
	m.logger.Debug("record stored", logging.Int64("id", rec.ID), logging.String("code", rec.Code))
	return nil
}

func (m *Module) getAll() ([]*Record, error) {
	return m.store.GetAll(m.ctx)
}

func (m *Module) markSynced(ids []int64) error {
	return m.store.MarkSynced(m.ctx, ids)
}
