package communication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"rfidmonitor/internal/config"
	"rfidmonitor/internal/ipc"
	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/monitor"
	"rfidmonitor/internal/registry"
)

// Capability names published by the service.
const (
	ServiceName      = "communication.service"
	SendMessageName  = "communication.sendMessage"
	SendEnvelopeName = "communication.sendEnvelope"
	SubscribeName    = "communication.subscribe"
	StateName        = "communication.state"
	RestartName      = "communication.restart"
)

// ErrConnectionFailed is returned by WaitReady when the channel fails.
var ErrConnectionFailed = errors.New("communication: daemon connection failed")

const readyPollInterval = 20 * time.Millisecond

// Service relays messages between the monitor modules and the daemon.
type Service struct {
	channel    *ipc.Channel
	dispatcher *ipc.Dispatcher
	logger     *slog.Logger

	mu          sync.RWMutex
	subscribers []func([]byte)
	lastErr     error
}

// New builds a service over transport.
func New(transport ipc.Transport, logger *slog.Logger) *Service {
	s := &Service{logger: logging.NewComponentLogger(logger, "communication")}
	opts := ipc.Options{Logger: logger}
	if addr, ok := transport.(interface{ Path() string }); ok {
		opts.Endpoint = addr.Path()
	}
	s.channel = ipc.NewChannel(transport, opts)
	s.dispatcher = ipc.NewDispatcher(s.channel, s.forward, logger)
	s.dispatcher.SetObserver(s)
	return s
}

// NewFromConfig builds a service dialing the configured daemon socket.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Service {
	return New(ipc.NewUnixTransport(cfg.SocketPath(), cfg.DialTimeout()), logger)
}

func (s *Service) Name() string { return "communication" }

// Init adopts the host logger and publishes the service capabilities.
func (s *Service) Init(_ context.Context, host *monitor.Host) error {
	s.logger = logging.NewComponentLogger(host.Logger, "communication")
	s.channel.SetLogger(host.Logger)
	s.dispatcher.SetLogger(host.Logger)
	return s.Register(host.Registry)
}

// Register publishes the service in reg and makes sendMessage the
// communication default.
func (s *Service) Register(reg *registry.Registry) error {
	capabilities := []struct {
		name string
		fn   any
	}{
		{SendMessageName, s.SendMessage},
		{SendEnvelopeName, s.SendEnvelope},
		{SubscribeName, s.Subscribe},
		{StateName, s.State},
		{RestartName, s.Restart},
	}
	for _, c := range capabilities {
		if err := reg.Register(c.name, registry.CategoryCommunication, c.fn); err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
	}
	reg.SetDefault(registry.CategoryCommunication, SendMessageName)
	s.logger.Debug("service registered", logging.String("service", ServiceName))
	return nil
}

// Run connects to the daemon and runs the channel reactor until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.channel.Submit(s.start); err != nil {
		return err
	}
	return s.channel.Run(ctx)
}

func (s *Service) start() {
	if err := s.channel.Start(); err != nil {
		s.logger.Debug("start ignored", logging.Error(err))
	}
}

// SendMessage writes raw bytes to the daemon.
func (s *Service) SendMessage(raw []byte) {
	data := append([]byte(nil), raw...)
	s.submit(func() { s.channel.SendRaw(data) })
}

// SendEnvelope wraps payload in an envelope of type msgType and sends it.
// The payload is encoded before SendEnvelope returns, so callers may reuse it.
func (s *Service) SendEnvelope(payload map[string]any, msgType string) {
	data, err := s.dispatcher.BuildEnvelope(msgType, payload)
	if err != nil {
		logging.WarnWithContext(s.logger, "envelope not sent", "communication_encode_failed",
			logging.String(logging.FieldMessageType, msgType),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the message type and payload values"),
			logging.String(logging.FieldImpact, "message dropped"))
		return
	}
	s.submit(func() { s.channel.SendRaw(data) })
}

// Subscribe registers fn to receive every forwarded daemon message. fn runs
// on the reactor goroutine and must not block.
func (s *Service) Subscribe(fn func([]byte)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// State reports the channel state name.
func (s *Service) State() string {
	return s.channel.State().String()
}

// Restart drops the current connection and dials again.
func (s *Service) Restart() {
	s.submit(func() {
		s.channel.Close()
		s.start()
	})
}

// Sync waits until every request submitted before it has been handled by
// the reactor.
func (s *Service) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.channel.Submit(func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitReady blocks until the handshake completes, the channel fails or ctx
// ends.
func (s *Service) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		switch s.channel.State() {
		case ipc.StateReady:
			return nil
		case ipc.StateFailed:
			// observers are notified on the reactor after the state flips
			_ = s.Sync(ctx)
			s.mu.RLock()
			err := s.lastErr
			s.mu.RUnlock()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
			}
			return ErrConnectionFailed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) submit(fn func()) {
	if err := s.channel.Submit(fn); err != nil {
		logging.WarnWithContext(s.logger, "communication service stopped", "communication_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restart rfidmonitor"),
			logging.String(logging.FieldImpact, "request dropped"))
	}
}

func (s *Service) forward(raw []byte) {
	s.mu.RLock()
	subscribers := slices.Clone(s.subscribers)
	s.mu.RUnlock()
	for _, fn := range subscribers {
		fn(raw)
	}
}

func (s *Service) OnConnected() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Service) OnDisconnected() {
	s.recordErr(ipc.ErrDisconnected)
}

func (s *Service) OnTransportError(err error) {
	s.recordErr(err)
}

func (s *Service) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Info("daemon connection lost", logging.Error(err),
		logging.String(logging.FieldState, s.State()))
}
