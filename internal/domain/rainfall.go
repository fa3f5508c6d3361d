package domain

import "fmt"

// rainfallBands are the (lower, upper] monthly rainfall bounds in mm for
// classes 1 through 10; anything above the last bound is class 11.
var rainfallBands = []float64{10, 20, 30, 40, 50, 75, 100, 150, 200, 250}

// ClassifyRainfall maps a monthly rainfall total (mm) to its class. Totals at
// or below zero keep their value.
func ClassifyRainfall(mm float64) float64 {
	if mm <= 0 {
		return mm
	}
	for i, upper := range rainfallBands {
		if mm <= upper {
			return float64(i + 1)
		}
	}
	return float64(len(rainfallBands) + 1)
}

// ClassifyRainfallRaster applies ClassifyRainfall to every unmasked pixel.
func ClassifyRainfallRaster(r *Raster) *Raster {
	return r.Map(ClassifyRainfall)
}

// MonthlyDescription names a monthly export, e.g. "rainfall_03_2011".
func MonthlyDescription(prefix string, k MonthKey) string {
	return fmt.Sprintf("%s_%02d_%d", prefix, int(k.Month), k.Year)
}
