package monitor_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/monitor"
	"rfidmonitor/internal/registry"
	"rfidmonitor/internal/testsupport"
)

type stubModule struct {
	name     string
	category registry.Category
	caps     map[string]any
	initErr  error
	inits    int
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) Init(_ context.Context, host *monitor.Host) error {
	m.inits++
	if m.initErr != nil {
		return m.initErr
	}
	for name, fn := range m.caps {
		if err := host.Registry.Register(name, m.category, fn); err != nil {
			return err
		}
	}
	return nil
}

type runnerModule struct {
	stubModule
	started atomic.Bool
	stopped atomic.Bool
}

func (m *runnerModule) Run(ctx context.Context) error {
	m.started.Store(true)
	<-ctx.Done()
	m.stopped.Store(true)
	return ctx.Err()
}

func TestStartWiresModulesAndDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDefault("export", "export.csv"))

	var subscriber func([]byte)
	comm := &stubModule{
		name:     "communication",
		category: registry.CategoryCommunication,
		caps: map[string]any{
			"communication.sendMessage": func([]byte) {},
			"communication.subscribe":   func(fn func([]byte)) { subscriber = fn },
		},
	}
	export := &runnerModule{stubModule: stubModule{
		name:     "export",
		category: registry.CategoryExport,
		caps: map[string]any{
			"export.csv":  func() error { return nil },
			"export.json": func() error { return nil },
		},
	}}

	mon, err := monitor.New(cfg, logging.NewNop(), comm, export)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mon.Stop)

	if !mon.IsRunning() {
		t.Fatal("expected monitor to be running")
	}
	if mon.RunID() == "" {
		t.Fatal("expected run id")
	}
	if got := strings.Join(mon.Modules(), ","); got != "communication,export" {
		t.Fatalf("unexpected modules: %s", got)
	}
	if len(mon.Services(registry.CategoryExport)) != 2 {
		t.Fatalf("unexpected export services: %+v", mon.Services(registry.CategoryExport))
	}

	capability, err := mon.DefaultService(registry.CategoryCommunication)
	if err != nil {
		t.Fatalf("DefaultService communication: %v", err)
	}
	if capability.Name != "communication.sendMessage" {
		t.Fatalf("unexpected communication default: %s", capability.Name)
	}
	capability, err = mon.DefaultService(registry.CategoryExport)
	if err != nil || capability.Name != "export.csv" {
		t.Fatalf("unexpected export default: %+v err=%v", capability, err)
	}

	mon.SetDefaultService(registry.CategoryExport, "export.json")
	capability, err = mon.DefaultService(registry.CategoryExport)
	if err != nil || capability.Name != "export.json" {
		t.Fatalf("SetDefaultService not applied: %+v err=%v", capability, err)
	}

	if subscriber == nil {
		t.Fatal("expected monitor to subscribe to communication messages")
	}
	subscriber([]byte(`{"type":"SYNC","data":{}}`))
	subscriber([]byte(`garbage`))
	if mon.MessageCount() != 2 {
		t.Fatalf("expected two observed messages, got %d", mon.MessageCount())
	}

	deadline := time.Now().Add(2 * time.Second)
	for !export.started.Load() {
		if time.Now().After(deadline) {
			t.Fatal("runner was not started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mon.Stop()
	if mon.IsRunning() {
		t.Fatal("expected monitor to be stopped")
	}
	if !export.stopped.Load() {
		t.Fatal("expected runner to observe cancellation")
	}
	mon.Stop()
}

func TestSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	defer first.Stop()

	second, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "already running") {
		second.Stop()
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func TestStartFailsOnModuleInitError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	broken := &stubModule{name: "broken", initErr: errors.New("boom")}

	mon, err := monitor.New(cfg, logging.NewNop(), broken)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mon.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "init module broken") {
		t.Fatalf("expected init error, got %v", err)
	}
	if mon.IsRunning() {
		t.Fatal("monitor must not run after a failed start")
	}

	again, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := again.Start(context.Background()); err != nil {
		t.Fatalf("lock should be released after failed start: %v", err)
	}
	again.Stop()
}

func TestStartRejectsUnknownDefaultCategory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDefault("printing", "printer.send"))
	mon, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mon.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "monitor.defaults") {
		t.Fatalf("expected defaults error, got %v", err)
	}
}

func TestNewRejectsDuplicateModules(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := monitor.New(cfg, logging.NewNop(), &stubModule{name: "a"}, &stubModule{name: "a"}); err == nil {
		t.Fatal("expected duplicate module error")
	}
}

func TestDevice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Monitor.Device = "/dev/ttyACM0"
	mon, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mon.Device() != "/dev/ttyACM0" {
		t.Fatalf("unexpected device %q", mon.Device())
	}
}

func TestInspectDoesNotTakeLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mod := &stubModule{
		name:     "export",
		category: registry.CategoryExport,
		caps:     map[string]any{"export.csv": func() error { return nil }},
	}
	running, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := running.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer running.Stop()

	inspector, err := monitor.New(cfg, logging.NewNop(), mod)
	if err != nil {
		t.Fatalf("New inspector: %v", err)
	}
	if err := inspector.Inspect(context.Background()); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if mod.inits != 1 || len(inspector.Registry().List()) != 1 {
		t.Fatalf("expected module to be wired once, inits=%d", mod.inits)
	}
	if inspector.IsRunning() {
		t.Fatal("Inspect must not mark the monitor running")
	}
}

func TestStartAfterStopRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	subscribes := 0
	comm := &runnerModule{stubModule: stubModule{
		name:     "communication",
		category: registry.CategoryCommunication,
		caps: map[string]any{
			"communication.subscribe": func(func([]byte)) { subscribes++ },
		},
	}}

	mon, err := monitor.New(cfg, logging.NewNop(), comm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mon.Stop()

	if err := mon.Start(context.Background()); !errors.Is(err, monitor.ErrStopped) {
		t.Fatalf("expected ErrStopped on restart, got %v", err)
	}
	if mon.IsRunning() {
		t.Fatal("a refused start must not mark the monitor running")
	}
	if comm.inits != 1 || subscribes != 1 {
		t.Fatalf("expected a single wiring pass, inits=%d subscribes=%d", comm.inits, subscribes)
	}

	fresh, err := monitor.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New fresh: %v", err)
	}
	if err := fresh.Start(context.Background()); err != nil {
		t.Fatalf("fresh monitor should take the released lock: %v", err)
	}
	fresh.Stop()
}
