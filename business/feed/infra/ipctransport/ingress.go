// Package ipctransport adapts the IPC framing layer to the feed engine's
// transport ports.
package ipctransport

import (
	"context"

	"github.com/fd1az/feedpipe/business/feed/app"
	"github.com/fd1az/feedpipe/internal/apperror"
	"github.com/fd1az/feedpipe/internal/ipc"
	"github.com/fd1az/feedpipe/internal/logger"
)

// Ensure Ingress implements FrameSource.
var _ app.FrameSource = (*Ingress)(nil)

// Ingress is the engine-side frame server. It owns the unix socket the
// websocket forwarder connects to.
type Ingress struct {
	receiver *ipc.Receiver
	logger   logger.LoggerInterface
}

// NewIngress binds the ingress socket at path. Binding failures are fatal
// initialization errors for the process.
func NewIngress(path string, log logger.LoggerInterface) (*Ingress, error) {
	receiver, err := ipc.NewReceiver(path)
	if err != nil {
		return nil, apperror.New(apperror.CodeIPCBindFailed,
			apperror.WithCause(err),
			apperror.WithContext(path))
	}

	log.Info(context.Background(), "ingress socket listening", "path", path)

	return &Ingress{
		receiver: receiver,
		logger:   log,
	}, nil
}

// Recv blocks for the next frame. io.EOF propagates to the engine as a
// clean end of stream.
func (i *Ingress) Recv(ctx context.Context) ([]byte, error) {
	return i.receiver.Recv(ctx)
}

// Path returns the bound socket path.
func (i *Ingress) Path() string {
	return i.receiver.Path()
}

// Close tears the socket down and unlinks the socket file.
func (i *Ingress) Close() error {
	return i.receiver.Close()
}
