package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testSourceURL = "https://archive.example.test"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.NewMonthKey(2001, time.January), cfg.Period.Start)
	assert.Equal(t, domain.NewMonthKey(2024, time.November), cfg.Period.End)
	assert.Equal(t, 6, cfg.WindowMonths)
	assert.Equal(t, []string{"pdi", "tdi"}, cfg.Indices)
	assert.False(t, cfg.IndexAllMonths)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, SourceFixture, cfg.SourceKind)
	assert.Equal(t, "data/mock/archive.json", cfg.FixturePath)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 3, cfg.SourceRetries)
	assert.Equal(t, 256, cfg.SourceCacheSize)
	assert.Equal(t, domain.Grid{West: 29.5, North: 4.3, CellSize: 0.05, Width: 110, Height: 116}, cfg.Grid)
	assert.Equal(t, "CDI_Uganda", cfg.ExportFolder)
	assert.Equal(t, 5566.0, cfg.ExportScale)
	assert.Equal(t, 1e13, cfg.ExportMaxPixels)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "drought-index-rasters", cfg.KafkaSinkTopic)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Empty(t, cfg.StatsDBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("START_YEAR", "2010")
	t.Setenv("START_MONTH", "3")
	t.Setenv("END_YEAR", "2020")
	t.Setenv("END_MONTH", "12")
	t.Setenv("WINDOW_MONTHS", "12")
	t.Setenv("INDICES", " PDI ")
	t.Setenv("INDEX_ALL_MONTHS", "true")
	t.Setenv("WORKERS", "4")
	t.Setenv("SOURCE_KIND", SourceArchive)
	t.Setenv("SOURCE_URL", testSourceURL)
	t.Setenv("SOURCE_TOKEN", "secret")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("SOURCE_RETRIES", "0")
	t.Setenv("SOURCE_CACHE_SIZE", "10")
	t.Setenv("GRID_CELL_SIZE", "0.1")
	t.Setenv("GRID_WIDTH", "55")
	t.Setenv("GRID_HEIGHT", "58")
	t.Setenv("EXPORT_DIR", "/tmp/exports")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("STATS_DB_PATH", "/tmp/stats.db")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.Period{
		Start: domain.NewMonthKey(2010, time.March),
		End:   domain.NewMonthKey(2020, time.December),
	}, cfg.Period)
	assert.Equal(t, 12, cfg.WindowMonths)
	assert.Equal(t, []string{"pdi"}, cfg.Indices)
	assert.True(t, cfg.IndexAllMonths)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, SourceArchive, cfg.SourceKind)
	assert.Equal(t, testSourceURL, cfg.SourceURL)
	assert.Equal(t, "secret", cfg.SourceToken)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 0, cfg.SourceRetries)
	assert.Equal(t, 10, cfg.SourceCacheSize)
	assert.Equal(t, 0.1, cfg.Grid.CellSize)
	assert.Equal(t, 55, cfg.Grid.Width)
	assert.Equal(t, 58, cfg.Grid.Height)
	assert.Equal(t, "/tmp/exports", cfg.ExportDir)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "/tmp/stats.db", cfg.StatsDBPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoad_Variables(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	vars := cfg.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, "PDI", vars[0].Index)
	assert.Equal(t, "TDI", vars[1].Index)
}

func TestLoad_WindowTooLong(t *testing.T) {
	t.Setenv("WINDOW_MONTHS", "13")
	_, err := Load()
	require.ErrorIs(t, err, domain.ErrWindowTooLong)
	assert.Contains(t, err.Error(), "WINDOW_MONTHS=13")
}

func TestLoad_WindowNotPositive(t *testing.T) {
	t.Setenv("WINDOW_MONTHS", "0")
	_, err := Load()
	require.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("WINDOW_MONTHS", "six")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid WINDOW_MONTHS")
}

func TestLoad_InvalidFloat(t *testing.T) {
	t.Setenv("GRID_WEST", "west")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid GRID_WEST")
}

func TestLoad_InvalidMonth(t *testing.T) {
	t.Setenv("END_MONTH", "13")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "END_MONTH")
}

func TestLoad_ReversedPeriod(t *testing.T) {
	t.Setenv("START_YEAR", "2025")
	_, err := Load()
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestLoad_UnknownIndex(t *testing.T) {
	t.Setenv("INDICES", "pdi,vhi")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INDICES")
}

func TestLoad_EmptyIndices(t *testing.T) {
	t.Setenv("INDICES", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INDICES is required")
}

func TestLoad_NonPositiveWorkers(t *testing.T) {
	t.Setenv("WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
}

func TestLoad_NonPositiveGrid(t *testing.T) {
	t.Setenv("GRID_WIDTH", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_WIDTH")
}

func TestLoad_ArchiveWithoutURL(t *testing.T) {
	t.Setenv("SOURCE_KIND", SourceArchive)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_URL")
}

func TestLoad_UnknownSourceKind(t *testing.T) {
	t.Setenv("SOURCE_KIND", "ftp")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_KIND")
}

func TestLoad_InvalidSourceTimeout(t *testing.T) {
	t.Setenv("SOURCE_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_TIMEOUT")
}

func TestLoad_NegativeSourceRetries(t *testing.T) {
	t.Setenv("SOURCE_RETRIES", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_RETRIES")
}

func TestLoad_KafkaEnabledWithoutTopic(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_SINK_TOPIC", "")
	cfg, err := Load()
	// An empty env var falls back to the default topic.
	require.NoError(t, err)
	assert.Equal(t, "drought-index-rasters", cfg.KafkaSinkTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}
