package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedExporter struct {
	recordingExporter
	name string
}

func (e *namedExporter) Name() string { return e.name }

func TestMultiExporter_FailureDoesNotStopOthers(t *testing.T) {
	metrics := newTestMetrics()
	broken := &namedExporter{name: "folder", recordingExporter: recordingExporter{err: errors.New("read-only file system")}}
	healthy := &namedExporter{name: "kafka"}

	m := pipeline.NewMultiExporter(discardLogger(), metrics, broken, nil, healthy)
	require.Equal(t, 2, m.Len())

	req := domain.ExportRequest{
		Description: "Raw_PDI_december_2002",
		Raster:      domain.Fill(twoPixelGrid, 1),
		Scale:       5566,
		MaxPixels:   1e13,
	}
	require.NoError(t, m.Export(context.Background(), req))
	require.NoError(t, m.Export(context.Background(), req))

	assert.Equal(t, []string{"Raw_PDI_december_2002", "Raw_PDI_december_2002"}, healthy.descriptions())
	assert.Empty(t, broken.descriptions())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Exports.WithLabelValues("folder", "error")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.Exports.WithLabelValues("folder", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Exports.WithLabelValues("kafka", "success")), 0)
}

func TestMultiExporter_Empty(t *testing.T) {
	m := pipeline.NewMultiExporter(discardLogger(), newTestMetrics())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "multi", m.Name())
	assert.NoError(t, m.Export(context.Background(), domain.ExportRequest{}))
}
