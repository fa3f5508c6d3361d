package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func testRequest() domain.ExportRequest {
	g := domain.Grid{West: 29.5, North: 4.3, CellSize: 0.05, Width: 2, Height: 1}
	legend := domain.SeverityLegend
	return domain.ExportRequest{
		RunID:       "run-1",
		Variable:    "PDI",
		Key:         domain.NewMonthKey(2024, time.November),
		Raster:      &domain.Raster{Grid: g, Data: []float64{3, math.NaN()}},
		Description: "Reclassified_PDI_november_2024",
		Scale:       5566,
		Folder:      "CDI_Uganda",
		Legend:      &legend,
		ProcessedAt: time.Date(2024, 12, 1, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	req := testRequest()

	msg, err := serializeToMessage(req)
	require.NoError(t, err)

	assert.Equal(t, []byte("Reclassified_PDI_november_2024"), msg.Key)
	assert.Len(t, msg.Headers, 3)
	assert.Equal(t, "variable", msg.Headers[0].Key)
	assert.Equal(t, []byte("PDI"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(req.ProcessedAt.Format(time.RFC3339)), msg.Headers[1].Value)
	assert.Equal(t, []byte(ContentType), msg.Headers[2].Value)

	decoded, err := DecodeMessage(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "2024-11", decoded.Month)
	assert.Equal(t, req.Raster.Grid, decoded.Grid)
	require.Len(t, decoded.Data, 2)
	assert.Equal(t, 3.0, decoded.Data[0])
	assert.True(t, math.IsNaN(decoded.Data[1]), "masked pixels survive encoding")
	require.NotNil(t, decoded.Legend)
	assert.Equal(t, domain.SeverityLegend.Palette, decoded.Legend.Palette)
	assert.True(t, req.ProcessedAt.Equal(decoded.ProcessedAt))
}

func TestDecodeMessage_Garbage(t *testing.T) {
	_, err := DecodeMessage([]byte{0xc1})
	require.Error(t, err)
}

func TestWriter_Export(t *testing.T) {
	rec := &recordingWriter{}
	w := &Writer{writer: rec, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.Export(context.Background(), testRequest()))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "kafka", w.Name())
}

func TestWriter_ExportRejectsInvalidRequest(t *testing.T) {
	rec := &recordingWriter{}
	w := &Writer{writer: rec, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	req := testRequest()
	req.Raster = nil
	err := w.Export(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrMissingData)
	assert.Empty(t, rec.msgs)
}

func TestWriter_ExportWrapsPublishError(t *testing.T) {
	boom := errors.New("broker unavailable")
	w := &Writer{writer: &recordingWriter{err: boom}, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.Export(context.Background(), testRequest())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Reclassified_PDI_november_2024")
}
