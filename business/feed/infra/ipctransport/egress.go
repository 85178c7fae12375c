package ipctransport

import (
	"context"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/feedpipe/business/feed/app"
	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/internal/apperror"
	"github.com/fd1az/feedpipe/internal/circuitbreaker"
	"github.com/fd1az/feedpipe/internal/ipc"
	"github.com/fd1az/feedpipe/internal/logger"
)

// Ensure Egress implements BboSink.
var _ app.BboSink = (*Egress)(nil)

// Egress publishes fixed-layout BBO records to the downstream socket.
// Sends run through a circuit breaker so a dead peer costs one failed
// syscall per trip window instead of one per BBO change.
type Egress struct {
	path   string
	sender *ipc.Sender
	logger logger.LoggerInterface

	breaker *circuitbreaker.CircuitBreaker[struct{}]
}

// NewEgress creates an egress publisher targeting the unix socket at path.
// The connection is established lazily on first publish, so the engine can
// start before the downstream consumer.
func NewEgress(path string, log logger.LoggerInterface) (*Egress, error) {
	sender, err := ipc.NewSender()
	if err != nil {
		return nil, err
	}

	e := &Egress{
		path:   path,
		sender: sender,
		logger: log,
	}

	cbCfg := circuitbreaker.DefaultConfig("bbo-egress")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	e.breaker = circuitbreaker.New[struct{}](cbCfg)

	return e, nil
}

// Connect dials the downstream socket eagerly. Optional; Publish connects
// on demand.
func (e *Egress) Connect() error {
	if err := e.sender.Connect(e.path); err != nil {
		return apperror.New(apperror.CodeIPCConnectFailed,
			apperror.WithCause(err),
			apperror.WithContext(e.path))
	}
	e.logger.Info(context.Background(), "egress socket connected", "path", e.path)
	return nil
}

// Publish encodes the update into its 64-byte layout and sends it as one
// frame. Failures are returned to the engine, which logs and continues.
func (e *Egress) Publish(ctx context.Context, update domain.BboUpdate) error {
	record, err := update.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = e.breaker.Execute(func() (struct{}, error) {
		if !e.sender.IsConnected() {
			if err := e.sender.Connect(e.path); err != nil {
				return struct{}{}, err
			}
			e.logger.Info(ctx, "egress socket connected", "path", e.path)
		}

		if err := e.sender.Send(ctx, record); err != nil {
			// Drop the connection; the next publish redials.
			e.sender.Close()
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return apperror.New(apperror.CodeIPCSendFailed,
			apperror.WithCause(err),
			apperror.WithContext(e.path))
	}
	return nil
}

// Close closes the downstream connection.
func (e *Egress) Close() error {
	return e.sender.Close()
}
