package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrNotConnected is returned by transports asked to write without a
// connection.
var ErrNotConnected = errors.New("ipc: transport not connected")

const readBufferSize = 64 * 1024

// Transport is the byte stream underneath a Channel.
//
// Connect must not block on the network: it reports the outcome through
// sink, tagging every event with generation. Write must flush before it
// returns.
type Transport interface {
	Connect(generation uint64, sink func(Event)) error
	Write(b []byte) error
	Close() error
}

// UnixTransport dials the daemon's Unix domain socket.
type UnixTransport struct {
	path        string
	dialTimeout time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	conn       net.Conn
	writer     *bufio.Writer
}

// NewUnixTransport returns a transport for the socket at path.
func NewUnixTransport(path string, dialTimeout time.Duration) *UnixTransport {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &UnixTransport{path: path, dialTimeout: dialTimeout}
}

// Path returns the socket path.
func (t *UnixTransport) Path() string {
	return t.path
}

func (t *UnixTransport) Connect(generation uint64, sink func(Event)) error {
	if sink == nil {
		return errors.New("ipc: transport requires event sink")
	}
	t.mu.Lock()
	t.closeLocked()
	ctx, cancel := context.WithCancel(context.Background())
	t.generation = generation
	t.cancel = cancel
	t.mu.Unlock()

	go t.dial(ctx, generation, sink)
	return nil
}

func (t *UnixTransport) dial(ctx context.Context, generation uint64, sink func(Event)) {
	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", t.path)
	if err != nil {
		sink(Event{Kind: EventError, Generation: generation, Err: fmt.Errorf("dial %s: %w", t.path, err)})
		return
	}

	t.mu.Lock()
	if t.generation != generation || ctx.Err() != nil {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.writer = bufio.NewWriter(conn)
	t.mu.Unlock()

	sink(Event{Kind: EventConnected, Generation: generation})
	t.readLoop(conn, generation, sink)
}

func (t *UnixTransport) readLoop(conn net.Conn, generation uint64, sink func(Event)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			sink(Event{Kind: EventData, Generation: generation, Data: data})
		}
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, net.ErrClosed):
		case errors.Is(err, io.EOF):
			sink(Event{Kind: EventDisconnected, Generation: generation})
		default:
			sink(Event{Kind: EventError, Generation: generation, Err: fmt.Errorf("read %s: %w", t.path, err)})
		}
		return
	}
}

func (t *UnixTransport) Write(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer == nil {
		return ErrNotConnected
	}
	if _, err := t.writer.Write(b); err != nil {
		return err
	}
	return t.writer.Flush()
}

func (t *UnixTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *UnixTransport) closeLocked() error {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.writer = nil
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
