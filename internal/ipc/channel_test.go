package ipc_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"rfidmonitor/internal/envelope"
	"rfidmonitor/internal/ipc"
	"rfidmonitor/internal/logging"
)

type fakeTransport struct {
	connects   []uint64
	writes     [][]byte
	closes     int
	writeErr   error
	connectErr error
	sink       func(ipc.Event)
}

func (f *fakeTransport) Connect(generation uint64, sink func(ipc.Event)) error {
	f.connects = append(f.connects, generation)
	f.sink = sink
	return f.connectErr
}

func (f *fakeTransport) Write(b []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), b...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.closes++
	return nil
}

type recordingObserver struct {
	connected    int
	disconnected int
	errs         []error
}

func (r *recordingObserver) OnConnected()               { r.connected++ }
func (r *recordingObserver) OnDisconnected()            { r.disconnected++ }
func (r *recordingObserver) OnTransportError(err error) { r.errs = append(r.errs, err) }

type harness struct {
	transport  *fakeTransport
	channel    *ipc.Channel
	dispatcher *ipc.Dispatcher
	observer   *recordingObserver
	forwarded  [][]byte
	logPath    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{transport: &fakeTransport{}, observer: &recordingObserver{}}
	h.logPath = filepath.Join(t.TempDir(), "ipc.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{h.logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	codec := envelope.Codec{Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }}
	h.channel = ipc.NewChannel(h.transport, ipc.Options{Logger: logger, Codec: codec})
	h.dispatcher = ipc.NewDispatcher(h.channel, func(b []byte) {
		h.forwarded = append(h.forwarded, b)
	}, logger)
	h.dispatcher.SetObserver(h.observer)
	return h
}

func (h *harness) event(kind ipc.EventKind) ipc.Event {
	return ipc.Event{Kind: kind, Generation: h.channel.Generation()}
}

func (h *harness) data(raw string) ipc.Event {
	ev := h.event(ipc.EventData)
	ev.Data = []byte(raw)
	return ev
}

func (h *harness) handshake(t *testing.T) {
	t.Helper()
	if err := h.channel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.channel.HandleEvent(h.event(ipc.EventConnected))
	h.channel.HandleEvent(h.data(`{"type":"ACK-SYN","datetime":"2024-05-01T12:00:01Z","data":{}}`))
	if h.channel.State() != ipc.StateReady {
		t.Fatalf("expected ready after handshake, got %s", h.channel.State())
	}
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(content)
}

func TestHandshakeReachesReady(t *testing.T) {
	h := newHarness(t)
	if h.channel.State() != ipc.StateDisconnected {
		t.Fatalf("expected disconnected, got %s", h.channel.State())
	}

	if err := h.channel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.channel.State() != ipc.StateConnecting {
		t.Fatalf("expected connecting, got %s", h.channel.State())
	}
	if len(h.transport.connects) != 1 {
		t.Fatalf("expected one connect, got %d", len(h.transport.connects))
	}

	h.channel.HandleEvent(h.event(ipc.EventConnected))
	if h.channel.State() != ipc.StateAwaitingHandshakeAck {
		t.Fatalf("expected awaiting handshake ack, got %s", h.channel.State())
	}
	if len(h.transport.writes) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(h.transport.writes))
	}
	syn, err := envelope.Decode(h.transport.writes[0])
	if err != nil {
		t.Fatalf("decode SYN: %v", err)
	}
	if syn.Type != envelope.TypeSYN || !reflect.DeepEqual(syn.Payload, map[string]any{}) {
		t.Fatalf("unexpected handshake envelope: %+v", syn)
	}
	if h.observer.connected != 1 {
		t.Fatalf("expected observer to see connect, got %d", h.observer.connected)
	}

	h.channel.HandleEvent(h.data(`{"type":"ACK-SYN"}`))
	if h.channel.State() != ipc.StateReady {
		t.Fatalf("expected ready, got %s", h.channel.State())
	}
	if len(h.forwarded) != 0 {
		t.Fatalf("handshake acknowledgement must not be forwarded, got %d", len(h.forwarded))
	}
}

func TestUnknownTypeForwardedUnchanged(t *testing.T) {
	h := newHarness(t)
	h.handshake(t)
	writes := len(h.transport.writes)

	raw := `{"type":"SOMETHING-ELSE","data":{"k":1}}`
	h.channel.HandleEvent(h.data(raw))

	if len(h.forwarded) != 1 || string(h.forwarded[0]) != raw {
		t.Fatalf("expected raw bytes forwarded unchanged, got %q", h.forwarded)
	}
	if h.channel.State() != ipc.StateReady {
		t.Fatalf("expected state unchanged, got %s", h.channel.State())
	}
	if len(h.transport.writes) != writes {
		t.Fatal("forwarding must not write to the daemon")
	}
}

func TestReservedTypesForwarded(t *testing.T) {
	h := newHarness(t)
	h.handshake(t)
	for _, typ := range []string{envelope.TypeStop, envelope.TypeReaderCommand, envelope.TypeSync, envelope.TypeReload} {
		h.channel.HandleEvent(h.data(`{"type":"` + typ + `"}`))
	}
	if len(h.forwarded) != 4 {
		t.Fatalf("expected reserved types to be forwarded, got %d", len(h.forwarded))
	}
}

func readyChannel(t *testing.T, h *harness) {
	h.handshake(t)
}

func TestMalformedInboundDropped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *harness)
		raw   string
		want  string
	}{
		{name: "not json while ready", setup: readyChannel, raw: "garbage", want: "parse error"},
		{name: "missing type while ready", setup: readyChannel, raw: `{"data":{}}`, want: "missing field"},
		{
			name: "not json while awaiting ack",
			setup: func(t *testing.T, h *harness) {
				if err := h.channel.Start(); err != nil {
					t.Fatalf("Start: %v", err)
				}
				h.channel.HandleEvent(h.event(ipc.EventConnected))
			},
			raw:  "{not json",
			want: "parse error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)
			before := h.channel.State()

			h.channel.HandleEvent(h.data(tt.raw))

			if len(h.forwarded) != 0 {
				t.Fatalf("malformed message must not be forwarded, got %q", h.forwarded)
			}
			if h.channel.State() != before {
				t.Fatalf("state changed from %s to %s", before, h.channel.State())
			}
			content := readLog(t, h.logPath)
			if !strings.Contains(content, "ipc_message_dropped") || !strings.Contains(content, tt.want) {
				t.Fatalf("expected dropped message log mentioning %q, got %s", tt.want, content)
			}
		})
	}
}

func TestTransportFailureFromEveryState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *harness)
	}{
		{name: "disconnected", setup: func(*testing.T, *harness) {}},
		{name: "connecting", setup: func(t *testing.T, h *harness) {
			if err := h.channel.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
		}},
		{name: "awaiting ack", setup: func(t *testing.T, h *harness) {
			if err := h.channel.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			h.channel.HandleEvent(h.event(ipc.EventConnected))
		}},
		{name: "ready", setup: readyChannel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)

			ev := h.event(ipc.EventError)
			ev.Err = errors.New("connection reset")
			h.channel.HandleEvent(ev)

			if h.channel.State() != ipc.StateFailed {
				t.Fatalf("expected failed, got %s", h.channel.State())
			}
			if len(h.observer.errs) != 1 {
				t.Fatalf("expected one transport error notification, got %d", len(h.observer.errs))
			}
			if !strings.Contains(readLog(t, h.logPath), "ipc_transport_error") {
				t.Fatal("expected transport error to be logged")
			}

			connects := len(h.transport.connects)
			if err := h.channel.Start(); err != nil {
				t.Fatalf("restart after failure: %v", err)
			}
			if h.channel.State() != ipc.StateConnecting {
				t.Fatalf("expected fresh connecting attempt, got %s", h.channel.State())
			}
			if len(h.transport.connects) != connects+1 {
				t.Fatal("expected a new transport connect")
			}
		})
	}
}

func TestDisconnectFailsChannel(t *testing.T) {
	h := newHarness(t)
	h.handshake(t)

	h.channel.HandleEvent(h.event(ipc.EventDisconnected))

	if h.channel.State() != ipc.StateFailed {
		t.Fatalf("expected failed, got %s", h.channel.State())
	}
	if h.observer.disconnected != 1 {
		t.Fatalf("expected disconnect notification, got %d", h.observer.disconnected)
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	h := newHarness(t)
	if err := h.channel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	old := h.channel.Generation()
	h.channel.HandleEvent(ipc.Event{Kind: ipc.EventError, Generation: old, Err: errors.New("refused")})
	if err := h.channel.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}

	h.channel.HandleEvent(ipc.Event{Kind: ipc.EventDisconnected, Generation: old})
	if h.channel.State() != ipc.StateConnecting {
		t.Fatalf("stale event changed state to %s", h.channel.State())
	}
}

func TestStartWhileActive(t *testing.T) {
	h := newHarness(t)
	h.handshake(t)
	if err := h.channel.Start(); !errors.Is(err, ipc.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if h.channel.State() != ipc.StateReady {
		t.Fatalf("expected ready to be kept, got %s", h.channel.State())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.channel.Close()
	if h.transport.closes != 0 {
		t.Fatal("closing a disconnected channel must not touch the transport")
	}

	h.handshake(t)
	h.channel.Close()
	if h.channel.State() != ipc.StateDisconnected {
		t.Fatalf("expected disconnected, got %s", h.channel.State())
	}
	closes := h.transport.closes
	h.channel.Close()
	if h.transport.closes != closes {
		t.Fatal("second close must be a no-op")
	}

	h.channel.HandleEvent(ipc.Event{Kind: ipc.EventError, Generation: h.channel.Generation() - 1})
	if h.channel.State() != ipc.StateDisconnected {
		t.Fatalf("events from the closed connection must be ignored, got %s", h.channel.State())
	}
}

func TestWriteFailureFailsChannel(t *testing.T) {
	h := newHarness(t)
	h.handshake(t)
	h.transport.writeErr = errors.New("broken pipe")

	h.channel.SendMessage("READINGS", map[string]any{"code": "E200"})

	if h.channel.State() != ipc.StateFailed {
		t.Fatalf("expected failed after write error, got %s", h.channel.State())
	}
	if len(h.observer.errs) != 1 || !strings.Contains(h.observer.errs[0].Error(), "broken pipe") {
		t.Fatalf("unexpected transport errors: %v", h.observer.errs)
	}
}

func TestConnectErrorFailsChannel(t *testing.T) {
	h := newHarness(t)
	h.transport.connectErr = errors.New("no socket")
	if err := h.channel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.channel.State() != ipc.StateFailed {
		t.Fatalf("expected failed, got %s", h.channel.State())
	}
}

func TestSendEncodesEnvelope(t *testing.T) {
	h := newHarness(t)
	h.handshake(t)

	h.channel.Send(envelope.Envelope{Type: "READINGS", Payload: map[string]any{"code": "E200"}})
	h.channel.SendMessage("", nil)

	if len(h.transport.writes) != 2 {
		t.Fatalf("expected SYN and one message, got %d writes", len(h.transport.writes))
	}
	env, err := envelope.Decode(h.transport.writes[1])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Type != "READINGS" || env.Payload["code"] != "E200" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if !strings.Contains(readLog(t, h.logPath), "ipc_encode_failed") {
		t.Fatal("expected encode failure to be logged")
	}
}

func TestBuildEnvelope(t *testing.T) {
	h := newHarness(t)
	data, err := h.dispatcher.BuildEnvelope(envelope.TypeSYN, nil)
	if err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	if want := `{"type":"SYN","datetime":"2024-05-01T12:00:00Z","data":{}}`; string(data) != want {
		t.Fatalf("unexpected envelope %s", data)
	}
}

func TestStateNames(t *testing.T) {
	if ipc.StateAwaitingHandshakeAck.String() != "awaiting_handshake_ack" {
		t.Fatalf("unexpected state name %q", ipc.StateAwaitingHandshakeAck)
	}
	if ipc.StateFailed.Active() || !ipc.StateReady.Active() {
		t.Fatal("unexpected Active classification")
	}
}
