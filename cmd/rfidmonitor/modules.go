package main

import (
	"fmt"
	"log/slog"

	"rfidmonitor/internal/communication"
	"rfidmonitor/internal/config"
	"rfidmonitor/internal/monitor"
	"rfidmonitor/internal/persistence"
)

// buildModules assembles the modules loaded by the monitor. The returned
// cleanup closes resources owned by the modules.
func buildModules(cfg *config.Config, logger *slog.Logger) ([]monitor.Module, func(), error) {
	modules := []monitor.Module{communication.NewFromConfig(cfg, logger)}
	cleanup := func() {}

	if cfg.Persistence.Enabled {
		store, err := persistence.Open(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open record store: %w", err)
		}
		modules = append(modules, persistence.NewModule(store))
		cleanup = func() { _ = store.Close() }
	}
	return modules, cleanup, nil
}
