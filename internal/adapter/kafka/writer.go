package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/config"
	"github.com/couchcryptid/drought-index-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"
)

// ContentType is carried in the content_type header of every message.
const ContentType = "application/msgpack"

// RasterMessage is the msgpack payload of one exported raster.
type RasterMessage struct {
	RunID       string         `msgpack:"run_id"`
	Variable    string         `msgpack:"variable"`
	Month       string         `msgpack:"month"`
	Description string         `msgpack:"description"`
	Folder      string         `msgpack:"folder"`
	Scale       float64        `msgpack:"scale"`
	Grid        domain.Grid    `msgpack:"grid"`
	Data        []float64      `msgpack:"data"` // row-major, NaN for masked pixels
	Legend      *domain.Legend `msgpack:"legend,omitempty"`
	ProcessedAt time.Time      `msgpack:"processed_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces exported rasters to a Kafka topic.
// It implements pipeline.Exporter.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   64 << 20,
	}
	return &Writer{writer: w, logger: logger}
}

// Name implements pipeline.Exporter.
func (w *Writer) Name() string { return "kafka" }

// Export serializes one raster and publishes it. Messages are keyed by
// description so re-runs of the same month land on the same partition.
func (w *Writer) Export(ctx context.Context, req domain.ExportRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	msg, err := serializeToMessage(req)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", req.Description, err)
	}
	w.logger.Debug("raster published", "description", req.Description, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an export request into a Kafka message.
func serializeToMessage(req domain.ExportRequest) (kafkago.Message, error) {
	data, err := msgpack.Marshal(RasterMessage{
		RunID:       req.RunID,
		Variable:    req.Variable,
		Month:       req.Key.String(),
		Description: req.Description,
		Folder:      req.Folder,
		Scale:       req.Scale,
		Grid:        req.Raster.Grid,
		Data:        req.Raster.Data,
		Legend:      req.Legend,
		ProcessedAt: req.ProcessedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize raster %s: %w", req.Description, err)
	}
	return kafkago.Message{
		Key:   []byte(req.Description),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variable", Value: []byte(req.Variable)},
			{Key: "processed_at", Value: []byte(req.ProcessedAt.Format(time.RFC3339))},
			{Key: "content_type", Value: []byte(ContentType)},
		},
	}, nil
}

// DecodeMessage parses a message value produced by Writer.
func DecodeMessage(value []byte) (RasterMessage, error) {
	var m RasterMessage
	if err := msgpack.Unmarshal(value, &m); err != nil {
		return RasterMessage{}, fmt.Errorf("decode raster message: %w", err)
	}
	return m, nil
}
