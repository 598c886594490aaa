package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"rfidmonitor/internal/envelope"
	"rfidmonitor/internal/logging"
)

var (
	// ErrAlreadyStarted is returned by Start while a connection is active.
	ErrAlreadyStarted = errors.New("ipc: channel already started")
	// ErrDisconnected is reported when the daemon closes the connection.
	ErrDisconnected = errors.New("ipc: daemon disconnected")
	// ErrStopped is returned by Submit after the reactor exited.
	ErrStopped = errors.New("ipc: reactor stopped")
)

const defaultQueueSize = 64

// Listener receives channel notifications on the reactor goroutine.
type Listener interface {
	OnConnected()
	OnDisconnected()
	OnRawMessage(b []byte)
	OnTransportError(err error)
}

// Options configures a Channel.
type Options struct {
	Logger    *slog.Logger
	Codec     envelope.Codec
	QueueSize int
	// Endpoint names the daemon address in log records.
	Endpoint string
}

// Channel owns one connection to the daemon and its handshake state.
//
// Start, Close, Send and HandleEvent mutate channel state and must run on the
// reactor goroutine: either inside Run through Submit, or directly when no
// reactor is running.
type Channel struct {
	transport Transport
	codec     envelope.Codec
	endpoint  string
	logger    *slog.Logger
	listener  Listener

	events chan Event
	tasks  chan func()
	done   chan struct{}

	state      State
	generation uint64
	snapshot   atomic.Int32
}

// NewChannel builds a disconnected channel over transport.
func NewChannel(transport Transport, opts Options) *Channel {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	c := &Channel{
		transport: transport,
		codec:     opts.Codec,
		endpoint:  opts.Endpoint,
		events:    make(chan Event, size),
		tasks:     make(chan func(), size),
		done:      make(chan struct{}),
	}
	c.SetLogger(opts.Logger)
	return c
}

// SetLogger replaces the base logger. Call it before Run.
func (c *Channel) SetLogger(logger *slog.Logger) {
	logger = logging.NewComponentLogger(logger, "ipc")
	if c.endpoint != "" {
		logger = logger.With(logging.String(logging.FieldEndpoint, c.endpoint))
	}
	c.logger = logger
}

// Endpoint returns the daemon address used in log records.
func (c *Channel) Endpoint() string {
	return c.endpoint
}

// SetListener installs the receiver of channel notifications.
func (c *Channel) SetListener(l Listener) {
	c.listener = l
}

// State reports the last state published by the reactor. Safe from any
// goroutine.
func (c *Channel) State() State {
	return State(c.snapshot.Load())
}

// Generation identifies the current connection attempt.
func (c *Channel) Generation() uint64 {
	return c.generation
}

// Start begins a connection attempt from Disconnected or Failed.
func (c *Channel) Start() error {
	if c.state.Active() {
		return fmt.Errorf("start from %s: %w", c.state, ErrAlreadyStarted)
	}
	c.generation++
	c.setState(StateConnecting)
	if err := c.transport.Connect(c.generation, c.post); err != nil {
		c.HandleEvent(Event{Kind: EventError, Generation: c.generation, Err: fmt.Errorf("connect: %w", err)})
	}
	return nil
}

// Close tears the connection down. Closing a Disconnected or Failed channel
// does nothing.
func (c *Channel) Close() {
	if !c.state.Active() {
		return
	}
	c.generation++
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("transport close failed", logging.Error(err))
	}
	c.setState(StateDisconnected)
}

// AcknowledgeHandshake records the daemon's ACK-SYN. It reports whether the
// channel moved to Ready.
func (c *Channel) AcknowledgeHandshake() bool {
	if c.state != StateAwaitingHandshakeAck {
		c.logger.Debug("ignoring handshake acknowledgement",
			logging.String(logging.FieldState, c.state.String()))
		return false
	}
	c.setState(StateReady)
	c.logger.Info("daemon handshake complete")
	return true
}

// Send encodes env and writes it. Write failures fail the channel.
func (c *Channel) Send(env envelope.Envelope) {
	data, err := c.codec.Marshal(env)
	if err != nil {
		logging.WarnWithContext(c.logger, "envelope not sent", "ipc_encode_failed",
			logging.String(logging.FieldMessageType, env.Type),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the message type and payload values"),
			logging.String(logging.FieldImpact, "message dropped"))
		return
	}
	c.SendRaw(data)
}

// SendMessage builds an envelope of type t and sends it.
func (c *Channel) SendMessage(t string, payload map[string]any) {
	c.Send(envelope.Envelope{Type: t, Payload: payload})
}

// SendRaw writes already encoded bytes and flushes them.
func (c *Channel) SendRaw(b []byte) {
	if err := c.transport.Write(b); err != nil {
		c.HandleEvent(Event{Kind: EventError, Generation: c.generation, Err: fmt.Errorf("write: %w", err)})
	}
}

// HandleEvent applies one transport event. Events from an earlier
// connection attempt are ignored.
func (c *Channel) HandleEvent(ev Event) {
	if ev.Generation != c.generation {
		c.logger.Debug("ignoring stale transport event",
			logging.String("event", ev.Kind.String()),
			logging.Any("generation", ev.Generation))
		return
	}

	switch ev.Kind {
	case EventConnected:
		if c.state != StateConnecting {
			return
		}
		c.setState(StateConnected)
		if c.listener != nil {
			c.listener.OnConnected()
		}
		c.setState(StateAwaitingHandshakeAck)
		c.SendMessage(envelope.TypeSYN, nil)
	case EventData:
		if c.listener != nil {
			c.listener.OnRawMessage(ev.Data)
		}
	case EventDisconnected:
		c.fail(ErrDisconnected)
		if c.listener != nil {
			c.listener.OnDisconnected()
		}
	case EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("unknown transport error")
		}
		c.fail(err)
		if c.listener != nil {
			c.listener.OnTransportError(err)
		}
	}
}

func (c *Channel) fail(err error) {
	logging.WarnWithContext(c.logger, "daemon connection failed", "ipc_transport_error",
		logging.Error(err),
		logging.String(logging.FieldState, c.state.String()),
		logging.String(logging.FieldErrorHint, "ensure the monitor daemon is running, then restart the channel"),
		logging.String(logging.FieldImpact, "messages are not delivered until the channel restarts"))
	c.generation++
	_ = c.transport.Close()
	c.setState(StateFailed)
}

func (c *Channel) setState(s State) {
	if c.state != s {
		c.logger.Debug("channel state changed",
			logging.String("from", c.state.String()),
			logging.String("to", s.String()))
	}
	c.state = s
	c.snapshot.Store(int32(s))
}

func (c *Channel) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Submit queues fn to run on the reactor goroutine.
func (c *Channel) Submit(fn func()) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.tasks <- fn:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Run applies queued events and tasks until ctx is done, then closes the
// channel. A channel runs its reactor at most once.
func (c *Channel) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return nil
		case ev := <-c.events:
			c.HandleEvent(ev)
		case fn := <-c.tasks:
			if fn != nil {
				fn()
			}
		}
	}
}
