package cryptocom

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/internal/apperror"
	"github.com/fd1az/feedpipe/internal/logger"
)

const (
	tracerName = "github.com/fd1az/feedpipe/business/feed/infra/cryptocom"
	meterName  = "github.com/fd1az/feedpipe/business/feed/infra/cryptocom"
)

// payloadLogPrefix bounds how much of an offending payload is logged.
const payloadLogPrefix = 64

// normalizerMetrics holds OTEL metric instruments.
type normalizerMetrics struct {
	parseErrors metric.Int64Counter
	downgrades  metric.Int64Counter
}

// Normalizer parses raw exchange JSON payloads into typed messages.
// It never panics past its boundary: malformed JSON is returned as a parse
// error and structurally deficient messages downgrade to Unknown.
type Normalizer struct {
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *normalizerMetrics
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(log logger.LoggerInterface) (*Normalizer, error) {
	n := &Normalizer{
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := n.initMetrics(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Normalizer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	n.metrics = &normalizerMetrics{}

	n.metrics.parseErrors, err = meter.Int64Counter(
		"feed_parse_errors_total",
		metric.WithDescription("Total payloads rejected as malformed JSON"),
		metric.WithUnit("{payload}"),
	)
	if err != nil {
		return err
	}

	n.metrics.downgrades, err = meter.Int64Counter(
		"feed_message_downgrades_total",
		metric.WithDescription("Total messages downgraded to Unknown"),
		metric.WithUnit("{message}"),
	)
	return err
}

// Parse normalizes one JSON document. The returned error is non-nil only
// for malformed JSON; every structurally valid document yields a message,
// possibly the Unknown variant.
func (n *Normalizer) Parse(ctx context.Context, payload []byte) (domain.Message, error) {
	ctx, span := n.tracer.Start(ctx, "cryptocom.parse",
		trace.WithAttributes(attribute.Int("payload.size", len(payload))),
	)
	defer span.End()

	var env wsEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return n.unknown(ctx, "payload is not an exchange envelope", payload)
		}
		n.metrics.parseErrors.Add(ctx, 1)
		span.RecordError(err)
		n.logger.Warn(ctx, "failed to parse exchange payload",
			"error", err,
			"payload_len", len(payload),
			"payload_prefix", prefix(payload),
		)
		return domain.Message{}, apperror.New(apperror.CodeParseFailure,
			apperror.WithCause(err),
			apperror.WithContext(prefix(payload)))
	}

	if env.Result == nil {
		return n.unknown(ctx, "missing result object", payload)
	}

	span.SetAttributes(attribute.String("channel", env.Result.Channel))

	switch env.Result.Channel {
	case ChannelBook:
		return n.parseSnapshot(ctx, env.Result, payload)
	case ChannelBookUpdate:
		return n.parseDelta(ctx, env.Result, payload)
	case ChannelTrade:
		return n.parseTrades(ctx, env.Result, payload)
	default:
		return n.unknown(ctx, "unrecognized channel "+env.Result.Channel, payload)
	}
}

func (n *Normalizer) parseSnapshot(ctx context.Context, res *wsResult, payload []byte) (domain.Message, error) {
	if len(res.Data) == 0 {
		return n.unknown(ctx, "snapshot without data", payload)
	}

	var data bookSnapshotData
	if err := json.Unmarshal(res.Data[0], &data); err != nil {
		return n.unknown(ctx, "snapshot data not an object", payload)
	}
	if res.InstrumentName == "" || data.U == nil {
		return n.unknown(ctx, "snapshot missing instrument or sequence", payload)
	}

	return domain.Message{
		Type: domain.TypeBookSnapshot,
		Snapshot: &domain.BookSnapshot{
			Instrument: res.InstrumentName,
			Depth:      res.Depth,
			Asks:       parseLevels(data.Asks),
			Bids:       parseLevels(data.Bids),
			TT:         data.TT,
			T:          data.T,
			U:          *data.U,
		},
	}, nil
}

func (n *Normalizer) parseDelta(ctx context.Context, res *wsResult, payload []byte) (domain.Message, error) {
	if len(res.Data) == 0 {
		return n.unknown(ctx, "delta without data", payload)
	}

	var data bookDeltaData
	if err := json.Unmarshal(res.Data[0], &data); err != nil {
		return n.unknown(ctx, "delta data not an object", payload)
	}
	if res.InstrumentName == "" || data.U == nil || data.PU == nil {
		return n.unknown(ctx, "delta missing instrument or sequence", payload)
	}

	return domain.Message{
		Type: domain.TypeBookDelta,
		Delta: &domain.BookDelta{
			Instrument: res.InstrumentName,
			Depth:      res.Depth,
			Asks:       parseLevels(data.Update.Asks),
			Bids:       parseLevels(data.Update.Bids),
			TT:         data.TT,
			T:          data.T,
			U:          *data.U,
			PU:         *data.PU,
		},
	}, nil
}

func (n *Normalizer) parseTrades(ctx context.Context, res *wsResult, payload []byte) (domain.Message, error) {
	if len(res.Data) == 0 {
		return n.unknown(ctx, "trade without data", payload)
	}

	trades := make([]domain.Trade, 0, len(res.Data))
	for _, raw := range res.Data {
		var data tradeData
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}

		instrument := data.I
		if instrument == "" {
			instrument = res.InstrumentName
		}
		if instrument == "" {
			continue
		}

		price, err := decimal.NewFromString(data.P)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(data.Q)
		if err != nil {
			continue
		}

		trades = append(trades, domain.Trade{
			Instrument: instrument,
			ID:         data.D,
			T:          data.T,
			Price:      price,
			Quantity:   qty,
			Side:       domain.Side(data.S),
		})
	}

	if len(trades) == 0 {
		return n.unknown(ctx, "trade data without valid entries", payload)
	}

	return domain.Message{
		Type:   domain.TypeTrade,
		Trades: trades,
	}, nil
}

func (n *Normalizer) unknown(ctx context.Context, reason string, payload []byte) (domain.Message, error) {
	n.metrics.downgrades.Add(ctx, 1)
	n.logger.Debug(ctx, "message downgraded to unknown",
		"reason", reason,
		"payload_len", len(payload),
	)
	return domain.UnknownMessage(), nil
}

func prefix(payload []byte) string {
	if len(payload) > payloadLogPrefix {
		return string(payload[:payloadLogPrefix])
	}
	return string(payload)
}
