// Package communication is the monitor module that talks to the daemon.
//
// A Service owns one ipc.Channel and its Dispatcher and publishes itself in
// the capability registry, so other modules send and observe daemon traffic
// by capability name only. Every call from another goroutine is handed to
// the channel reactor.
package communication
