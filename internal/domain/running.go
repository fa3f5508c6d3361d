package domain

import "fmt"

// RunningAverages computes, for every month of the period, the mean of the
// normalized rasters in the n-month window ending at that month. Windows are
// averaged over whatever months are available; only a window with no
// available month is skipped.
func RunningAverages(v Variable, normalized *MonthlyStore, period Period, n int) (*MonthlyStore, error) {
	out := NewMonthlyStore(v.Index + "_running_average")
	for _, k := range period.Months() {
		stack := make([]*Raster, 0, n)
		for _, w := range k.Window(n) {
			if r, ok := normalized.Get(w); ok {
				stack = append(stack, r)
			}
		}
		if len(stack) == 0 {
			continue
		}
		avg, err := Mean(stack)
		if err != nil {
			return nil, fmt.Errorf("running average %s: %w", k, err)
		}
		if err := out.Put(k, avg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RunningLengthMeans averages the running-average rasters per calendar month
// across all years. The result normalizes the index numerator.
func RunningLengthMeans(v Variable, running *MonthlyStore) (*ClimatologyStore, error) {
	return CalendarMeans(v.Index+"_running_length_mean", running)
}
