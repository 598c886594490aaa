package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIPC(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateIPC() error {
	if strings.ContainsAny(c.IPC.Endpoint, `/\`) {
		return fmt.Errorf("ipc.endpoint must be a bare name, got %q", c.IPC.Endpoint)
	}
	if c.IPC.DialTimeout <= 0 {
		return errors.New("ipc.dial_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func (c *Config) validateMonitor() error {
	for category, name := range c.Monitor.Defaults {
		if category == "" {
			return errors.New("monitor.defaults: category must not be empty")
		}
		if name == "" {
			return fmt.Errorf("monitor.defaults.%s must name a capability", category)
		}
	}
	return nil
}
