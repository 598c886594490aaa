package testsupport

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"rfidmonitor/internal/envelope"
)

// FakeDaemon is a Unix socket peer that speaks the daemon side of the
// protocol: it answers SYN with ACK-SYN and records every envelope it
// receives.
type FakeDaemon struct {
	t        testing.TB
	path     string
	listener net.Listener
	ack      bool

	mu       sync.Mutex
	conns    []net.Conn
	received []envelope.Envelope
	messages chan envelope.Envelope
	wg       sync.WaitGroup
}

// FakeDaemonOption customizes a FakeDaemon.
type FakeDaemonOption func(*FakeDaemon)

// WithoutHandshakeAck makes the daemon ignore SYN.
func WithoutHandshakeAck() FakeDaemonOption {
	return func(d *FakeDaemon) { d.ack = false }
}

// StartFakeDaemon listens on path until the test ends. The test is skipped
// when the environment forbids Unix sockets.
func StartFakeDaemon(t testing.TB, path string, opts ...FakeDaemonOption) *FakeDaemon {
	t.Helper()

	_ = os.Remove(path)
	listener, err := net.Listen("unix", path)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping fake daemon: %v", err)
		}
		t.Fatalf("listen on %s: %v", path, err)
	}

	d := &FakeDaemon{
		t:        t,
		path:     path,
		listener: listener,
		ack:      true,
		messages: make(chan envelope.Envelope, 64),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.accept()
	t.Cleanup(d.Close)
	return d
}

// Path returns the socket path.
func (d *FakeDaemon) Path() string {
	return d.path
}

func (d *FakeDaemon) accept() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns = append(d.conns, conn)
		d.mu.Unlock()

		d.wg.Add(1)
		go d.serve(conn)
	}
}

func (d *FakeDaemon) serve(conn net.Conn) {
	defer d.wg.Done()
	decoder := json.NewDecoder(conn)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return
		}
		env, err := envelope.Decode(raw)
		if err != nil {
			continue
		}

		d.mu.Lock()
		d.received = append(d.received, env)
		d.mu.Unlock()

		select {
		case d.messages <- env:
		default:
		}

		if env.Type == envelope.TypeSYN && d.ack {
			ack, err := envelope.Encode(envelope.TypeACKSYN, nil)
			if err == nil {
				_, _ = conn.Write(ack)
			}
		}
	}
}

// Send writes one envelope to the most recent connection.
func (d *FakeDaemon) Send(msgType string, payload map[string]any) {
	d.t.Helper()
	data, err := envelope.Encode(msgType, payload)
	if err != nil {
		d.t.Fatalf("encode %s: %v", msgType, err)
	}
	d.SendRaw(data)
}

// SendRaw writes raw bytes to the most recent connection.
func (d *FakeDaemon) SendRaw(data []byte) {
	d.t.Helper()
	d.mu.Lock()
	var conn net.Conn
	if len(d.conns) > 0 {
		conn = d.conns[len(d.conns)-1]
	}
	d.mu.Unlock()
	if conn == nil {
		d.t.Fatal("fake daemon has no client connection")
	}
	if _, err := conn.Write(data); err != nil {
		d.t.Fatalf("write to client: %v", err)
	}
}

// WaitFor blocks until an envelope of msgType arrives.
func (d *FakeDaemon) WaitFor(msgType string, timeout time.Duration) envelope.Envelope {
	d.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case env := <-d.messages:
			if env.Type == msgType {
				return env
			}
		case <-deadline:
			d.t.Fatalf("timed out waiting for %s", msgType)
			return envelope.Envelope{}
		}
	}
}

// Received returns a copy of every envelope seen so far.
func (d *FakeDaemon) Received() []envelope.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]envelope.Envelope(nil), d.received...)
}

// DropConnections closes every client connection while keeping the
// listener open.
func (d *FakeDaemon) DropConnections() {
	d.mu.Lock()
	conns := d.conns
	d.conns = nil
	d.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Close stops the daemon and removes the socket.
func (d *FakeDaemon) Close() {
	if err := d.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		d.t.Logf("close fake daemon listener: %v", err)
	}
	d.DropConnections()
	d.wg.Wait()
	_ = os.Remove(d.path)
}
