package ipc

import (
	"log/slog"

	"rfidmonitor/internal/envelope"
	"rfidmonitor/internal/logging"
)

// LifecycleObserver is told about connection changes seen by a Dispatcher.
type LifecycleObserver interface {
	OnConnected()
	OnDisconnected()
	OnTransportError(err error)
}

// Dispatcher classifies inbound messages for a Channel.
type Dispatcher struct {
	channel  *Channel
	codec    envelope.Codec
	logger   *slog.Logger
	forward  func([]byte)
	observer LifecycleObserver
}

// NewDispatcher attaches a dispatcher to channel. Messages other than the
// handshake acknowledgement are passed to forward unchanged.
func NewDispatcher(channel *Channel, forward func([]byte), logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		channel: channel,
		codec:   channel.codec,
		forward: forward,
	}
	d.SetLogger(logger)
	channel.SetListener(d)
	return d
}

// SetLogger replaces the base logger. Call it before the channel runs.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	logger = logging.NewComponentLogger(logger, "ipc_dispatcher")
	if endpoint := d.channel.Endpoint(); endpoint != "" {
		logger = logger.With(logging.String(logging.FieldEndpoint, endpoint))
	}
	d.logger = logger
}

// SetObserver installs an optional lifecycle observer.
func (d *Dispatcher) SetObserver(o LifecycleObserver) {
	d.observer = o
}

// SetForward replaces the handler that receives forwarded messages.
func (d *Dispatcher) SetForward(forward func([]byte)) {
	d.forward = forward
}

// BuildEnvelope encodes an outbound message stamped with the current time.
func (d *Dispatcher) BuildEnvelope(t string, payload map[string]any) ([]byte, error) {
	return d.codec.Encode(t, payload)
}

func (d *Dispatcher) OnRawMessage(b []byte) {
	env, err := d.codec.Decode(b)
	if err != nil {
		logging.WarnWithContext(d.logger, "dropping malformed daemon message", "ipc_message_dropped",
			logging.Error(err),
			logging.Int("bytes", len(b)),
			logging.String(logging.FieldErrorHint, "check the daemon writes one JSON envelope per message"),
			logging.String(logging.FieldImpact, "message ignored"))
		return
	}

	switch env.Type {
	case envelope.TypeACKSYN:
		d.channel.AcknowledgeHandshake()
	default:
		d.logger.Debug("forwarding daemon message", logging.String(logging.FieldMessageType, env.Type))
		if d.forward != nil {
			d.forward(b)
		}
	}
}

func (d *Dispatcher) OnConnected() {
	d.logger.Info("connected to daemon")
	if d.observer != nil {
		d.observer.OnConnected()
	}
}

func (d *Dispatcher) OnDisconnected() {
	if d.observer != nil {
		d.observer.OnDisconnected()
	}
}

func (d *Dispatcher) OnTransportError(err error) {
	if d.observer != nil {
		d.observer.OnTransportError(err)
	}
}
