package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"rfidmonitor/internal/config"
	"rfidmonitor/internal/envelope"
	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/registry"
)

// subscribeCapability is resolved by name so the monitor does not depend on
// the communication module.
const subscribeCapability = "communication.subscribe"

// ErrStopped is returned by Start once the monitor has been stopped. Module
// runners own one-shot reactors, so a stopped monitor cannot be restarted;
// build a new one instead.
var ErrStopped = errors.New("monitor: stopped monitors cannot be restarted")

// Monitor coordinates module wiring and enforces single-instance execution.
type Monitor struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	modules  []Module

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	runID    string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  atomic.Bool
	stopped  atomic.Bool
	messages atomic.Int64
}

// New constructs a monitor for the given modules.
func New(cfg *config.Config, logger *slog.Logger, modules ...Module) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("monitor requires config")
	}
	seen := make(map[string]struct{}, len(modules))
	for _, mod := range modules {
		if mod == nil {
			return nil, errors.New("monitor received nil module")
		}
		if _, dup := seen[mod.Name()]; dup {
			return nil, fmt.Errorf("module %q loaded twice", mod.Name())
		}
		seen[mod.Name()] = struct{}{}
	}

	lockPath := cfg.LockPath()
	return &Monitor{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "monitor"),
		registry: registry.New(),
		modules:  modules,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start initialises modules, applies category defaults and launches runners.
func (m *Monitor) Start(ctx context.Context) error {
	if m.stopped.Load() {
		return ErrStopped
	}
	if m.running.Load() {
		return errors.New("monitor already running")
	}
	if err := m.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another rfidmonitor instance is already running (lock %s)", m.lockPath)
	}

	runID := uuid.NewString()
	logger := m.logger.With(logging.String(logging.FieldRunID, runID))
	host := &Host{Config: m.cfg, Logger: logger, Registry: m.registry, RunID: runID}

	if err := m.wire(ctx, host); err != nil {
		_ = m.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.runID = runID
	m.logger = logger
	m.cancel = cancel
	m.mu.Unlock()

	for _, mod := range m.modules {
		runner, ok := mod.(Runner)
		if !ok {
			continue
		}
		m.wg.Add(1)
		go func(name string, r Runner) {
			defer m.wg.Done()
			if err := r.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(logger, "module stopped with error", "module_run_failed",
					logging.String(logging.FieldModule, name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "restart rfidmonitor; check the module configuration"))
			}
		}(mod.Name(), runner)
	}

	m.running.Store(true)
	logger.Info("rfidmonitor started",
		logging.Int("modules", len(m.modules)),
		logging.String("device", m.cfg.Monitor.Device),
		logging.String("lock", m.lockPath))
	return nil
}

func (m *Monitor) wire(ctx context.Context, host *Host) error {
	for _, mod := range m.modules {
		if err := mod.Init(ctx, host); err != nil {
			return fmt.Errorf("init module %s: %w", mod.Name(), err)
		}
		host.Logger.Debug("module loaded", logging.String(logging.FieldModule, mod.Name()))
	}

	for categoryName, name := range m.cfg.Monitor.Defaults {
		category, err := registry.ParseCategory(categoryName)
		if err != nil {
			return fmt.Errorf("monitor.defaults: %w", err)
		}
		m.registry.SetDefault(category, name)
	}
	for _, category := range registry.Categories() {
		if name, ok := m.registry.DefaultName(category); ok {
			if _, err := m.registry.DefaultFor(category); err != nil {
				logging.WarnWithContext(host.Logger, "default capability unavailable", "default_capability_missing",
					logging.String(logging.FieldCapability, name),
					logging.String("category", category.String()),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check [monitor.defaults] against `rfidmonitor services`"),
					logging.String(logging.FieldImpact, "callers of the category default will fail"))
			}
		}
	}

	subscribe, err := registry.Lookup[func(func([]byte))](m.registry, subscribeCapability)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		host.Logger.Debug("no communication module loaded; inbound messages are not observed")
	case err != nil:
		return err
	default:
		subscribe(m.NewMessage)
	}
	return nil
}

// Inspect initialises modules and applies defaults without taking the
// instance lock or starting runners. The CLI uses it to list capabilities
// while another monitor may be running.
func (m *Monitor) Inspect(ctx context.Context) error {
	host := &Host{Config: m.cfg, Logger: m.logger, Registry: m.registry}
	return m.wire(ctx, host)
}

// Stop cancels runners and releases the instance lock.
func (m *Monitor) Stop() {
	if !m.running.Load() {
		return
	}
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	logger := m.logger
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if err := m.lock.Unlock(); err != nil {
		logging.WarnWithContext(logger, "failed to release monitor lock", "monitor_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+m.lockPath+" if the next start reports a running instance"))
	}
	m.stopped.Store(true)
	m.running.Store(false)
	logger.Info("rfidmonitor stopped")
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

// RunID identifies the current run. Empty before Start.
func (m *Monitor) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// Registry exposes the capability registry shared with modules.
func (m *Monitor) Registry() *registry.Registry {
	return m.registry
}

// Modules returns the names of the loaded modules in load order.
func (m *Monitor) Modules() []string {
	names := make([]string, 0, len(m.modules))
	for _, mod := range m.modules {
		names = append(names, mod.Name())
	}
	return names
}

// Services lists the capabilities published under category.
func (m *Monitor) Services(category registry.Category) []registry.Capability {
	return m.registry.Services(category)
}

// DefaultService returns the default capability of category.
func (m *Monitor) DefaultService(category registry.Category) (registry.Capability, error) {
	return m.registry.DefaultFor(category)
}

// SetDefaultService changes the default capability of category.
func (m *Monitor) SetDefaultService(category registry.Category, name string) {
	m.registry.SetDefault(category, name)
}

// Device returns the configured reader device.
func (m *Monitor) Device() string {
	return m.cfg.Monitor.Device
}

// MessageCount is the number of daemon messages observed by NewMessage.
func (m *Monitor) MessageCount() int64 {
	return m.messages.Load()
}

// NewMessage receives messages forwarded by the communication module.
func (m *Monitor) NewMessage(raw []byte) {
	m.messages.Add(1)
	m.mu.Lock()
	logger := m.logger
	m.mu.Unlock()

	env, err := envelope.Decode(raw)
	if err != nil {
		logger.Debug("unreadable daemon message", logging.Error(err))
		return
	}
	logger.Info("daemon message received",
		logging.String(logging.FieldMessageType, env.Type),
		logging.Int("fields", len(env.Payload)))
}
