// Package domain computes the Combined Drought Indicator components derived
// from satellite rasters: the Precipitation Drought Index (PDI) and the
// Temperature Drought Index (TDI).
//
// # Data Sources
//
// Precipitation comes from CHIRPS daily rainfall (mm/day) on a 0.05 degree
// grid (~5566 m at the equator). Temperature comes from MODIS MOD11A1 daytime
// land surface temperature, delivered as digital numbers on a 1 km grid:
//
//	celsius = dn * 0.02 - 273.15
//
// Temperature rasters are block-averaged onto the CHIRPS grid so both indices
// share one spatial resolution. NDVI (MODIS MOD13A2) is only used by the
// monthly export pipeline.
//
// # Masking
//
// A [Raster] stores one float64 per pixel. NaN marks a masked pixel (outside
// the area of interest, no observation, or no defined result). Pointwise
// arithmetic propagates masks; collection means skip masked inputs per pixel.
//
// # Index Computation
//
// For a trailing window of N months (default 6) ending at a target month:
//
//	normalized   p+1 (precipitation) | -t+45.45 (temperature)
//	climatology  mean of normalized values per calendar month, all years
//	running avg  mean of the N normalized months ending at the target
//	rl mean      mean of running averages per calendar month, all years
//	flag         1 if normalized >= climatology, else 0
//	run length   longest run of 0 flags inside the N-month window
//	transformed  -run_length + (N+1), always in [1, N+1]
//	index        (running avg / rl mean) * sqrt(transformed / mean transformed)
//
// Severity classes use closed upper bounds:
//
//	<=0.4 Extreme (1) | <=0.6 Severe (2) | <=0.8 Moderate (3) | <=1.0 Mild (4) | >1.0 Normal (5)
//
// # Windows
//
// Running averages tolerate partial windows near the start of history. Run
// lengths require exactly N flag rasters; any target with a missing flag is
// skipped. See [RunLengthEngine] for the empty-run policy that differs between
// PDI (masked) and TDI (zero-filled).
package domain
