package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyIndex(t *testing.T) {
	tests := []struct {
		index float64
		want  Severity
	}{
		{0.1, SeverityExtreme},
		{0.4, SeverityExtreme},
		{0.41, SeveritySevere},
		{0.55, SeveritySevere},
		{0.6, SeveritySevere},
		{0.8, SeverityModerate},
		{0.95, SeverityMild},
		{1.0, SeverityMild},
		{1.2, SeverityNormal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyIndex(tt.index), "index %v", tt.index)
	}

	assert.Equal(t, "Extreme", SeverityExtreme.String())
	assert.Equal(t, "Normal", SeverityNormal.String())
	assert.Equal(t, "Unknown", Severity(0).String())
	assert.Len(t, SeverityLegend.Palette, len(SeverityLegend.Names))
}

func TestClassifyRaster(t *testing.T) {
	got := ClassifyRaster(raster(0.3, nan, 1.5))
	assertPixels(t, []float64{1, nan, 5}, got)
}

func TestComposeIndex(t *testing.T) {
	in := IndexInputs{
		RunningAverage:      raster(2, 3, nan),
		RunningLengthMean:   raster(4, 3, 1),
		TransformedRunLen:   raster(1, 4, 1),
		HistoricalRunLenAvg: raster(4, 4, 1),
	}
	got, err := ComposeIndex(in)
	require.NoError(t, err)
	// 2/4 * sqrt(1/4) and 3/3 * sqrt(4/4).
	assertPixels(t, []float64{0.25, 1, nan}, got)

	in.HistoricalRunLenAvg = raster(1)
	_, err = ComposeIndex(in)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestGatherIndexInputs(t *testing.T) {
	key := NewMonthKey(2002, time.December)
	running := NewMonthlyStore("running")
	rlMeans := NewClimatologyStore("rl_means")
	transformed := NewMonthlyStore("transformed")
	historical := NewClimatologyStore("historical")

	_, err := GatherIndexInputs(key, running, rlMeans, transformed, historical)
	require.ErrorIs(t, err, ErrMissingData)
	assert.Contains(t, err.Error(), "running average")

	require.NoError(t, running.Put(key, raster(1)))
	require.NoError(t, rlMeans.Put(time.December, raster(2)))
	_, err = GatherIndexInputs(key, running, rlMeans, transformed, historical)
	require.ErrorIs(t, err, ErrMissingData)
	assert.Contains(t, err.Error(), "transformed run length")

	require.NoError(t, transformed.Put(key, raster(3)))
	require.NoError(t, historical.Put(time.December, raster(4)))
	in, err := GatherIndexInputs(key, running, rlMeans, transformed, historical)
	require.NoError(t, err)
	assert.Equal(t, 4.0, in.HistoricalRunLenAvg.Data[0])
}

func TestIndexResult(t *testing.T) {
	fixed := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	r := NewIndexResult(Precipitation, NewMonthKey(2024, time.November), raster(0.5))
	assert.Equal(t, fixed, r.ComputedAt)
	assert.Equal(t, []float64{2}, r.Classes.Data)
	assert.Equal(t, "Raw_PDI_november_2024", r.RawDescription())
	assert.Equal(t, "Reclassified_PDI_november_2024", r.ClassifiedDescription())

	r = NewIndexResult(Temperature, NewMonthKey(2011, time.March), raster(1))
	assert.Equal(t, "Raw_TDI_march_2011", r.RawDescription())
}

func TestClassifyRainfall(t *testing.T) {
	tests := []struct {
		mm   float64
		want float64
	}{
		{0, 0},
		{-1, -1},
		{0.1, 1},
		{10, 1},
		{10.5, 2},
		{50, 5},
		{75, 6},
		{250, 10},
		{251, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRainfall(tt.mm), "%v mm", tt.mm)
	}
	assertPixels(t, []float64{1, nan, 0}, ClassifyRainfallRaster(raster(10, nan, 0)))
	assert.Equal(t, "rainfall_03_2011", MonthlyDescription("rainfall", NewMonthKey(2011, time.March)))
}

func TestZonalMeans(t *testing.T) {
	r := raster(1, 3, nan, 10)
	regions := []Polygon{
		{Name: "west", Ring: []Point{{0, 0}, {2, 0}, {2, 1}, {0, 1}}},
		{Name: "masked", Ring: []Point{{2, 0}, {3, 0}, {3, 1}, {2, 1}}},
		{Name: "outside", Ring: []Point{{10, 0}, {11, 0}, {11, 1}, {10, 1}}},
	}
	stats := ZonalMeans(r, regions, BandNDVI, NewMonthKey(2020, time.July))
	require.Len(t, stats, 3)

	assert.Equal(t, ZonalStat{Region: "west", Variable: BandNDVI, Year: 2020, Month: 7, Mean: 2, Count: 2}, stats[0])
	assert.True(t, math.IsNaN(stats[1].Mean))
	assert.Zero(t, stats[1].Count)
	assert.True(t, math.IsNaN(stats[2].Mean))
}

func TestZonalMeans_CenterInsideRegion(t *testing.T) {
	g := Grid{West: 0, North: 2, CellSize: 1, Width: 2, Height: 2}
	r := &Raster{Grid: g, Data: []float64{1, 100, 2, 3}}
	// The L-shaped region's bounds cover pixel 1, but its center lies outside.
	l := Polygon{Name: "l", Ring: []Point{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}}}
	degenerate := Polygon{Name: "line", Ring: []Point{{0, 0}, {2, 2}}}

	stats := ZonalMeans(r, []Polygon{l, degenerate}, BandPrecipitation, NewMonthKey(2020, time.July))
	require.Len(t, stats, 2)
	assert.InDelta(t, 2.0, stats[0].Mean, 1e-12)
	assert.Equal(t, 3, stats[0].Count)
	assert.True(t, math.IsNaN(stats[1].Mean))
	assert.Zero(t, stats[1].Count)
}

func TestExportRequest_Validate(t *testing.T) {
	ok := ExportRequest{Description: "Raw_PDI_december_2002", Raster: raster(1, 2), MaxPixels: 2}
	require.NoError(t, ok.Validate())

	noRaster := ok
	noRaster.Raster = nil
	require.ErrorIs(t, noRaster.Validate(), ErrMissingData)

	noDesc := ok
	noDesc.Description = ""
	require.Error(t, noDesc.Validate())

	tooBig := ok
	tooBig.MaxPixels = 1
	require.ErrorIs(t, tooBig.Validate(), ErrPixelBudget)

	unlimited := ok
	unlimited.MaxPixels = 0
	require.NoError(t, unlimited.Validate())
}

func TestLookupIndex(t *testing.T) {
	v, err := LookupIndex(" PDI ")
	require.NoError(t, err)
	assert.Equal(t, Precipitation.Index, v.Index)

	v, err = LookupIndex("tdi")
	require.NoError(t, err)
	assert.Equal(t, NoRunZeroFill, v.NoRun)

	_, err = LookupIndex("ndvi")
	require.Error(t, err)
}
