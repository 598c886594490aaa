package ipc

import "fmt"

// State is the connection state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAwaitingHandshakeAck
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAwaitingHandshakeAck:
		return "awaiting_handshake_ack"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether a connection attempt is in progress or established.
func (s State) Active() bool {
	switch s {
	case StateConnecting, StateConnected, StateAwaitingHandshakeAck, StateReady:
		return true
	default:
		return false
	}
}

// EventKind identifies a transport notification.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventData
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventData:
		return "data"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one transport notification. Generation ties it to the connection
// attempt that produced it.
type Event struct {
	Kind       EventKind
	Generation uint64
	Data       []byte
	Err        error
}
