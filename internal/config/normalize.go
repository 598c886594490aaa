package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeIPC(); err != nil {
		return err
	}
	c.normalizePersistence()
	c.normalizeMonitor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIPC() error {
	c.IPC.Endpoint = strings.TrimSpace(c.IPC.Endpoint)
	if c.IPC.Endpoint == "" {
		c.IPC.Endpoint = defaultEndpoint
	}
	if value, ok := os.LookupEnv(socketDirEnv); ok && strings.TrimSpace(value) != "" {
		c.IPC.SocketDir = value
	}
	if strings.TrimSpace(c.IPC.SocketDir) == "" {
		c.IPC.SocketDir = defaultSocketDir
	}
	var err error
	if c.IPC.SocketDir, err = expandPath(strings.TrimSpace(c.IPC.SocketDir)); err != nil {
		return fmt.Errorf("ipc.socket_dir: %w", err)
	}
	if c.IPC.DialTimeout <= 0 {
		c.IPC.DialTimeout = defaultDialTimeout
	}
	return nil
}

func (c *Config) normalizePersistence() {
	c.Persistence.DBFile = strings.TrimSpace(c.Persistence.DBFile)
	if c.Persistence.DBFile == "" {
		c.Persistence.DBFile = defaultDBFile
	}
}

func (c *Config) normalizeMonitor() {
	c.Monitor.Device = strings.TrimSpace(c.Monitor.Device)
	if len(c.Monitor.Defaults) == 0 {
		return
	}
	defaults := make(map[string]string, len(c.Monitor.Defaults))
	for category, name := range c.Monitor.Defaults {
		defaults[strings.ToLower(strings.TrimSpace(category))] = strings.TrimSpace(name)
	}
	c.Monitor.Defaults = defaults
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
