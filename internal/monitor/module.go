package monitor

import (
	"context"
	"log/slog"

	"rfidmonitor/internal/config"
	"rfidmonitor/internal/registry"
)

// Module is a unit loaded by the monitor.
type Module interface {
	Name() string
	// Init registers the module's capabilities. It runs before any Runner
	// starts.
	Init(ctx context.Context, host *Host) error
}

// Runner is implemented by modules with a long-running loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Host is the context shared with modules during Init.
type Host struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	RunID    string
}
