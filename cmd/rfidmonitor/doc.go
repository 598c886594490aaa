// Package main hosts the rfidmonitor CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the module host in the foreground, sends
// one-off envelopes to the daemon, lists published capabilities and stored
// reads, and checks the environment. It centralizes configuration
// resolution and socket overrides so subcommands only deal with output.
package main
