package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"rfidmonitor/internal/config"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if socket := c.socketOverride(); socket != "" {
			expanded, err := config.ExpandPath(socket)
			if err != nil {
				c.configErr = fmt.Errorf("resolve socket path: %w", err)
				return
			}
			cfg.IPC.SocketDir = filepath.Dir(expanded)
			cfg.IPC.Endpoint = filepath.Base(expanded)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) socketOverride() string {
	if c.socketFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.socketFlag)
}

func (c *commandContext) socketPath() string {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return c.socketOverride()
	}
	return cfg.SocketPath()
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("connect to daemon: socket %s not found; start the monitor daemon first", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
