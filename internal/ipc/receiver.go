package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fd1az/feedpipe/internal/ipc"

// ErrClosed is returned by Recv after Close.
var ErrClosed = errors.New("ipc: receiver closed")

// receiverMetrics holds OTEL metric instruments.
type receiverMetrics struct {
	framesReceived metric.Int64Counter
	bytesReceived  metric.Int64Counter
	peerAccepts    metric.Int64Counter
}

// Receiver is the server side of the IPC boundary. It binds a unix stream
// socket, serves one peer at a time and reads framed payloads. The listen
// backlog is the net package default, not 1: a second peer that connects
// waits in the queue until the current peer disconnects.
type Receiver struct {
	path string

	listener net.Listener
	conn     net.Conn
	mu       sync.Mutex
	closed   bool

	metrics *receiverMetrics
}

// NewReceiver binds path and starts listening. Any stale socket file left
// by a previous run is removed before binding.
func NewReceiver(path string) (*Receiver, error) {
	_ = os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		path:     path,
		listener: listener,
	}
	if err := r.initMetrics(); err != nil {
		listener.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return r, nil
}

func (r *Receiver) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &receiverMetrics{}

	r.metrics.framesReceived, err = meter.Int64Counter(
		"ipc_frames_received_total",
		metric.WithDescription("Total IPC frames received"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	r.metrics.bytesReceived, err = meter.Int64Counter(
		"ipc_bytes_received_total",
		metric.WithDescription("Total IPC payload bytes received"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	r.metrics.peerAccepts, err = meter.Int64Counter(
		"ipc_peer_accepts_total",
		metric.WithDescription("Total IPC peer connections accepted"),
		metric.WithUnit("{connection}"),
	)
	return err
}

// Path returns the socket path the receiver is bound to.
func (r *Receiver) Path() string {
	return r.path
}

// Recv blocks until one complete frame arrives and returns its payload.
// A peer disconnect returns io.EOF; the next call accepts a new peer.
// After Close, Recv returns ErrClosed.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	conn, err := r.peer()
	if err != nil {
		return nil, err
	}

	payload, err := ReadFrame(conn)
	if err != nil {
		r.dropPeer(conn)
		if r.isClosed() {
			return nil, ErrClosed
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}

	attrs := metric.WithAttributes(attribute.String("ipc.path", r.path))
	r.metrics.framesReceived.Add(ctx, 1, attrs)
	r.metrics.bytesReceived.Add(ctx, int64(len(payload)), attrs)

	return payload, nil
}

// peer returns the connected peer, accepting one if necessary.
func (r *Receiver) peer() (net.Conn, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if r.conn != nil {
		conn := r.conn
		r.mu.Unlock()
		return conn, nil
	}
	listener := r.listener
	r.mu.Unlock()

	conn, err := listener.Accept()
	if err != nil {
		if r.isClosed() {
			return nil, ErrClosed
		}
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	r.conn = conn
	r.mu.Unlock()

	r.metrics.peerAccepts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("ipc.path", r.path)))

	return conn, nil
}

func (r *Receiver) dropPeer(conn net.Conn) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
	conn.Close()
}

func (r *Receiver) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close shuts the listener and any connected peer down and removes the
// socket file. Blocked Recv calls return ErrClosed.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.conn = nil
	listener := r.listener
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	err := listener.Close()
	_ = os.Remove(r.path)
	return err
}
