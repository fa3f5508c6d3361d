package domain

import "fmt"

// Normalize applies the variable's affine transform to every monthly raster,
// producing the normalized store read by every later stage.
func Normalize(v Variable, raw *MonthlyStore) (*MonthlyStore, error) {
	out := NewMonthlyStore(v.Index + "_normalized")
	for _, k := range SortedKeys(raw) {
		r, _ := raw.Get(k)
		if err := out.Put(k, r.Affine(v.NormalizeScale, v.NormalizeOffset)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CalendarMeans averages, for each calendar month, every raster of that month
// across all years. A calendar month with no contributing year is absent.
func CalendarMeans(name string, monthly *MonthlyStore) (*ClimatologyStore, error) {
	out := NewClimatologyStore(name)
	for _, m := range CalendarMonths() {
		stack := ByCalendarMonth(monthly, m)
		if len(stack) == 0 {
			continue
		}
		mean, err := Mean(stack)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", name, m, err)
		}
		if err := out.Put(m, mean); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Climatology computes the long-term mean of the normalized values per
// calendar month.
func Climatology(v Variable, normalized *MonthlyStore) (*ClimatologyStore, error) {
	return CalendarMeans(v.Index+"_climatology", normalized)
}
