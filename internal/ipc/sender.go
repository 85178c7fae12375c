package ipc

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotConnected is returned by Send before a successful Connect.
var ErrNotConnected = errors.New("ipc: not connected")

// senderMetrics holds OTEL metric instruments.
type senderMetrics struct {
	framesSent metric.Int64Counter
	bytesSent  metric.Int64Counter
	sendErrors metric.Int64Counter
}

// Sender is the client side of the IPC boundary. It connects to a
// peer-bound unix stream socket and writes framed payloads. Failures are
// reported to the caller; the sender never retries internally.
type Sender struct {
	mu   sync.Mutex
	conn net.Conn
	path string

	metrics *senderMetrics
}

// NewSender creates an unconnected sender.
func NewSender() (*Sender, error) {
	s := &Sender{}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sender) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &senderMetrics{}

	s.metrics.framesSent, err = meter.Int64Counter(
		"ipc_frames_sent_total",
		metric.WithDescription("Total IPC frames sent"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	s.metrics.bytesSent, err = meter.Int64Counter(
		"ipc_bytes_sent_total",
		metric.WithDescription("Total IPC payload bytes sent"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	s.metrics.sendErrors, err = meter.Int64Counter(
		"ipc_send_errors_total",
		metric.WithDescription("Total IPC send failures"),
		metric.WithUnit("{error}"),
	)
	return err
}

// Connect dials the unix socket at path. A previous connection, if any,
// is closed first.
func (s *Sender) Connect(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}

	s.conn = conn
	s.path = path
	return nil
}

// Send writes one framed payload.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	attrs := metric.WithAttributes(attribute.String("ipc.path", s.path))

	if err := WriteFrame(s.conn, payload); err != nil {
		s.metrics.sendErrors.Add(ctx, 1, attrs)
		return err
	}

	s.metrics.framesSent.Add(ctx, 1, attrs)
	s.metrics.bytesSent.Add(ctx, int64(len(payload)), attrs)
	return nil
}

// IsConnected reports whether the sender currently holds a connection.
func (s *Sender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close closes the connection if one is open.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
