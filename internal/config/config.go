package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// IPC describes the local endpoint of the external daemon.
type IPC struct {
	Endpoint    string `toml:"endpoint"`
	SocketDir   string `toml:"socket_dir"`
	DialTimeout int    `toml:"dial_timeout"` // seconds
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Persistence contains configuration for the local record store.
type Persistence struct {
	Enabled bool   `toml:"enabled"`
	DBFile  string `toml:"db_file"`
}

// Monitor contains module host settings.
type Monitor struct {
	Device string `toml:"device"`
	// Defaults maps a capability category name (e.g. "communication") to the
	// capability that DefaultFor should return for it.
	Defaults map[string]string `toml:"defaults"`
}

// Config encapsulates all configuration values for rfidmonitor.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - IPC: daemon endpoint name, socket directory, dial timeout
//   - Logging: log format and level
//   - Persistence: SQLite record store
//   - Monitor: reader device and per-category default capabilities
type Config struct {
	Paths       Paths       `toml:"paths"`
	IPC         IPC         `toml:"ipc"`
	Logging     Logging     `toml:"logging"`
	Persistence Persistence `toml:"persistence"`
	Monitor     Monitor     `toml:"monitor"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigFile)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the filesystem path of the daemon's local endpoint.
func (c *Config) SocketPath() string {
	return filepath.Join(c.IPC.SocketDir, c.IPC.Endpoint)
}

// DialTimeout returns the IPC dial timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.IPC.DialTimeout) * time.Second
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Persistence.DBFile) {
		return c.Persistence.DBFile
	}
	return filepath.Join(c.Paths.DataDir, c.Persistence.DBFile)
}

// LockPath returns the single-instance lock file used by the module host.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "rfidmonitor.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
