package main

import (
	"bytes"
	"strings"
	"testing"

	"rfidmonitor/internal/config"
	"rfidmonitor/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	socketPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("RFIDMONITOR_SOCKET_DIR", "")
	cfg := testsupport.NewConfig(t, opts...)
	return &cliTestEnv{
		cfg:        cfg,
		configPath: testsupport.WriteConfig(t, cfg),
		socketPath: cfg.SocketPath(),
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
