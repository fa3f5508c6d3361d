package domain

import (
	"fmt"
	"strings"
)

// Band names used when querying a RasterSource.
const (
	BandPrecipitation = "precipitation"
	BandTemperature   = "temperature"
	BandNDVI          = "ndvi"
)

// TemperatureCalibration keeps the sign-inverted temperature positive.
const TemperatureCalibration = 45.45

// NoRunPolicy decides the run length of a pixel whose window has no
// below-normal month.
type NoRunPolicy int

const (
	// NoRunMask leaves the pixel masked (PDI).
	NoRunMask NoRunPolicy = iota
	// NoRunZeroFill sets the run length to 0 (TDI).
	NoRunZeroFill
)

func (p NoRunPolicy) String() string {
	if p == NoRunZeroFill {
		return "zero_fill"
	}
	return "mask"
}

// Variable describes how one physical quantity flows through the index
// pipeline.
type Variable struct {
	// Index is the short index name used in export descriptions ("PDI").
	Index string
	// Band is the RasterSource band to query.
	Band string
	// Reducer collapses sub-monthly observations into one monthly raster.
	Reducer Reducer
	// ObservationScale and ObservationOffset convert raw observations into
	// physical units before aggregation.
	ObservationScale  float64
	ObservationOffset float64
	// NormalizeScale and NormalizeOffset map monthly values onto a strictly
	// positive "larger is more favorable" scale.
	NormalizeScale  float64
	NormalizeOffset float64
	// Resample projects monthly rasters onto the analysis grid.
	Resample bool
	// NoRun is the empty-run policy of the run-length engine.
	NoRun NoRunPolicy
}

// Precipitation is the PDI variable: CHIRPS daily sums, value+1.
var Precipitation = Variable{
	Index:             "PDI",
	Band:              BandPrecipitation,
	Reducer:           ReduceSum,
	ObservationScale:  1,
	ObservationOffset: 0,
	NormalizeScale:    1,
	NormalizeOffset:   1,
	NoRun:             NoRunMask,
}

// Temperature is the TDI variable: MODIS LST monthly means in Celsius,
// -value+45.45, resampled onto the precipitation grid.
var Temperature = Variable{
	Index:             "TDI",
	Band:              BandTemperature,
	Reducer:           ReduceMean,
	ObservationScale:  0.02,
	ObservationOffset: -273.15,
	NormalizeScale:    -1,
	NormalizeOffset:   TemperatureCalibration,
	Resample:          true,
	NoRun:             NoRunZeroFill,
}

// NDVI is only aggregated and exported by the monthly pipeline.
var NDVI = Variable{
	Index:            "NDVI",
	Band:             BandNDVI,
	Reducer:          ReduceMean,
	ObservationScale: 1,
	NormalizeScale:   1,
	NoRun:            NoRunMask,
}

// LookupIndex resolves an index name ("pdi", "tdi") to its Variable.
func LookupIndex(name string) (Variable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pdi":
		return Precipitation, nil
	case "tdi":
		return Temperature, nil
	default:
		return Variable{}, fmt.Errorf("unknown drought index %q", name)
	}
}
