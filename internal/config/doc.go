// Package config loads, normalizes, and validates rfidmonitor configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the RFIDMONITOR_SOCKET_DIR
// environment fallback. The Config type centralizes the knobs the module host,
// the communication channel, and the persistence store need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
