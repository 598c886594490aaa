// Package monitor hosts the rfidmonitor modules inside one process.
//
// The Monitor owns the capability registry, initialises each Module in
// order so it can publish capabilities, applies the configured category
// defaults and then runs every module that implements Runner. It also
// subscribes itself to messages forwarded by the communication module.
//
// Only one monitor may run per data directory; Start takes a file lock.
package monitor
