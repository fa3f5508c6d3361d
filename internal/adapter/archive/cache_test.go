package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingSource struct {
	calls  int
	series []domain.Observation
	err    error
}

func (m *countingSource) Series(_ context.Context, _ domain.Query) ([]domain.Observation, error) {
	m.calls++
	return m.series, m.err
}

func oneObservation(v float64) []domain.Observation {
	return []domain.Observation{{
		Time:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Raster: domain.Fill(testGrid, v),
	}}
}

func monthQuery(m time.Month) domain.Query {
	start := time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
	return domain.Query{Band: domain.BandPrecipitation, Start: start, End: start.AddDate(0, 1, 0), Bounds: testGrid}
}

// --- CachedSource tests ---

func TestCachedSource_CacheHit(t *testing.T) {
	inner := &countingSource{series: oneObservation(3)}
	cached := NewCachedSource(inner, 10, testMetrics())

	s1, err := cached.Series(context.Background(), monthQuery(time.January))
	require.NoError(t, err)
	require.Len(t, s1, 1)

	s2, err := cached.Series(context.Background(), monthQuery(time.January))
	require.NoError(t, err)
	require.Len(t, s2, 1)
	assert.Equal(t, 3.0, s2[0].Raster.Data[0])

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.ArchiveCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.ArchiveCache.WithLabelValues("miss")))
}

func TestCachedSource_HitsAreCopies(t *testing.T) {
	inner := &countingSource{series: oneObservation(3)}
	cached := NewCachedSource(inner, 10, testMetrics())

	first, err := cached.Series(context.Background(), monthQuery(time.January))
	require.NoError(t, err)
	first[0].Raster.Data[0] = -1

	second, err := cached.Series(context.Background(), monthQuery(time.January))
	require.NoError(t, err)
	assert.Equal(t, 3.0, second[0].Raster.Data[0])
}

func TestCachedSource_DifferentKeysMiss(t *testing.T) {
	inner := &countingSource{series: oneObservation(1)}
	cached := NewCachedSource(inner, 10, testMetrics())

	_, _ = cached.Series(context.Background(), monthQuery(time.January))
	_, _ = cached.Series(context.Background(), monthQuery(time.February))

	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_EmptyNotCached(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 10, testMetrics())

	_, _ = cached.Series(context.Background(), monthQuery(time.January))
	_, _ = cached.Series(context.Background(), monthQuery(time.January))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.cache.size())
}

func TestCachedSource_ErrorPassesThrough(t *testing.T) {
	boom := errors.New("archive down")
	cached := NewCachedSource(&countingSource{err: boom}, 10, testMetrics())

	_, err := cached.Series(context.Background(), monthQuery(time.January))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cached.cache.size())
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", oneObservation(1))
	c.put("b", oneObservation(2))

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, result[0].Raster.Data[0])

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", oneObservation(1))
	c.put("b", oneObservation(2))
	c.put("c", oneObservation(3)) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, 2.0, result[0].Raster.Data[0])

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3.0, result[0].Raster.Data[0])
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", oneObservation(1))
	c.put("b", oneObservation(2))

	// Access "a" to promote it
	c.get("a")

	// Insert "c", which should evict "b" (LRU), not "a"
	c.put("c", oneObservation(3))

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", oneObservation(1))
	c.put("a", oneObservation(2))

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 2.0, result[0].Raster.Data[0])
	assert.Equal(t, 1, c.size())
}
