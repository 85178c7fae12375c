// Package infra contains infrastructure adapters for the exchange context.
package infra

import (
	"context"
	"time"

	"github.com/fd1az/feedpipe/business/exchange/app"
	"github.com/fd1az/feedpipe/internal/apperror"
	"github.com/fd1az/feedpipe/internal/ipc"
	"github.com/fd1az/feedpipe/internal/logger"
)

// Ensure IPCForwarder implements FrameSink.
var _ app.FrameSink = (*IPCForwarder)(nil)

// connectRetryDelay paces connection attempts against the engine's
// ingress socket during startup.
const connectRetryDelay = 100 * time.Millisecond

// IPCForwarder frames raw exchange payloads onto the engine's ingress
// socket.
type IPCForwarder struct {
	path   string
	sender *ipc.Sender
	logger logger.LoggerInterface
}

// NewIPCForwarder creates a forwarder targeting the ingress socket at path.
func NewIPCForwarder(path string, log logger.LoggerInterface) (*IPCForwarder, error) {
	sender, err := ipc.NewSender()
	if err != nil {
		return nil, err
	}

	return &IPCForwarder{
		path:   path,
		sender: sender,
		logger: log,
	}, nil
}

// Connect dials the ingress socket, retrying every connectRetryDelay while
// the engine has not bound it yet. It stops early when ctx ends and gives up
// after 50 attempts, returning IPC_CONNECT_FAILED with the last dial error.
func (f *IPCForwarder) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 50; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lastErr = f.sender.Connect(f.path); lastErr == nil {
			f.logger.Info(ctx, "connected to ingress socket", "path", f.path)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}

	return apperror.New(apperror.CodeIPCConnectFailed,
		apperror.WithCause(lastErr),
		apperror.WithContext(f.path))
}

// Deliver frames one payload onto the socket.
func (f *IPCForwarder) Deliver(ctx context.Context, payload []byte) error {
	if err := f.sender.Send(ctx, payload); err != nil {
		return apperror.New(apperror.CodeIPCSendFailed,
			apperror.WithCause(err),
			apperror.WithContext(f.path))
	}
	return nil
}

// Close closes the socket connection.
func (f *IPCForwarder) Close() error {
	return f.sender.Close()
}
