package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"rfidmonitor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The socket directory is kept short because Unix socket paths are limited
// to roughly a hundred bytes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.IPC.SocketDir = ShortTempDir(t)
	cfgVal.IPC.Endpoint = "RFIDMonitorDaemon"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPersistence toggles the SQLite record store.
func WithPersistence(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Persistence.Enabled = enabled
	}
}

// WithEndpoint overrides the daemon endpoint name.
func WithEndpoint(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.IPC.Endpoint = name
	}
}

// WithDefault sets the default capability for a category name.
func WithDefault(category, name string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Monitor.Defaults == nil {
			b.cfg.Monitor.Defaults = map[string]string{}
		}
		b.cfg.Monitor.Defaults[category] = name
	}
}

// ShortTempDir returns a temp directory under the system temp root that is
// removed when the test ends.
func ShortTempDir(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "rfid")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// WriteConfig serializes cfg to a TOML file inside the test's temp tree and
// returns its path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(filepath.Dir(cfg.Paths.DataDir), "rfidmonitor.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
