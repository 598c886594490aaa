// Package preflight provides readiness checks for the filesystem paths and
// the daemon endpoint rfidmonitor depends on.
//
// The CLI "rfidmonitor check" command runs RunAll and renders each Result as
// a status line; "rfidmonitor run" logs failing checks before it starts the
// modules. The record store check is skipped when persistence is disabled.
package preflight
