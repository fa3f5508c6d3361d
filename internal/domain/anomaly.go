package domain

import "math"

// Flag values produced by the anomaly classifier.
const (
	FlagBelowNormal = 0.0
	FlagNormal      = 1.0
)

// ClassifyAnomaly maps an anomaly (value minus climatology) to a flag: 1 when
// the anomaly is at or above zero, 0 otherwise. Masked anomalies stay masked.
func ClassifyAnomaly(anomaly float64) float64 {
	switch {
	case math.IsNaN(anomaly):
		return anomaly
	case anomaly >= 0:
		return FlagNormal
	default:
		return FlagBelowNormal
	}
}

// AnomalyFlags builds the binary flag raster for every month that has both a
// normalized value and a climatological mean for its calendar month. The
// second return value lists the months that were skipped.
func AnomalyFlags(v Variable, normalized *MonthlyStore, climatology *ClimatologyStore) (*MonthlyStore, []MonthKey, error) {
	out := NewMonthlyStore(v.Index + "_flags")
	var skipped []MonthKey
	for _, k := range SortedKeys(normalized) {
		value, _ := normalized.Get(k)
		mean, ok := climatology.Get(k.Month)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		anomaly, err := Sub(value, mean)
		if err != nil {
			return nil, nil, err
		}
		if err := out.Put(k, anomaly.Map(ClassifyAnomaly)); err != nil {
			return nil, nil, err
		}
	}
	return out, skipped, nil
}
