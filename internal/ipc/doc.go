// Package ipc keeps the persistent Unix socket connection to the monitor
// daemon and classifies the messages arriving on it.
//
// A Channel owns the connection state machine. Transport callbacks are
// queued as events and applied one at a time by the reactor started with
// Run; code on other goroutines reaches the channel through Submit. Once the
// transport connects the channel sends SYN and waits for ACK-SYN before it
// reports Ready.
//
// A Dispatcher sits on top of the channel. It decodes inbound bytes, consumes
// the handshake acknowledgement and forwards everything else unchanged.
// Messages that fail to decode are logged and dropped.
//
// Each transport read is treated as exactly one envelope. The daemon writes
// one message per flush, which keeps reads aligned in practice; coalesced or
// fragmented reads are not reassembled.
package ipc
