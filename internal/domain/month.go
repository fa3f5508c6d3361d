package domain

import (
	"fmt"
	"strings"
	"time"
)

// MonthKey identifies one calendar month of one year.
type MonthKey struct {
	Year  int
	Month time.Month
}

// NewMonthKey builds a MonthKey, normalizing month overflow into the year
// (month 0 is December of the previous year, month 13 January of the next).
func NewMonthKey(year int, month time.Month) MonthKey {
	m := int(month) - 1
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	return MonthKey{Year: year, Month: time.Month(m + 1)}
}

// MonthKeyOf returns the month containing t (in UTC).
func MonthKeyOf(t time.Time) MonthKey {
	t = t.UTC()
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// Add shifts the key by n months, rolling the year as needed.
func (k MonthKey) Add(n int) MonthKey {
	return NewMonthKey(k.Year, k.Month+time.Month(n))
}

// Prev returns the month before k.
func (k MonthKey) Prev() MonthKey { return k.Add(-1) }

// Next returns the month after k.
func (k MonthKey) Next() MonthKey { return k.Add(1) }

// Before reports whether k sorts strictly before o.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// After reports whether k sorts strictly after o.
func (k MonthKey) After(o MonthKey) bool { return o.Before(k) }

// Compare orders keys lexicographically by (year, month).
func (k MonthKey) Compare(o MonthKey) int {
	switch {
	case k.Before(o):
		return -1
	case o.Before(k):
		return 1
	}
	return 0
}

// Start returns the first instant of the month in UTC.
func (k MonthKey) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month (exclusive bound).
func (k MonthKey) End() time.Time {
	return k.Start().AddDate(0, 1, 0)
}

// MonthsSince returns the number of months from o to k (negative if k is earlier).
func (k MonthKey) MonthsSince(o MonthKey) int {
	return (k.Year-o.Year)*12 + int(k.Month) - int(o.Month)
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Window returns the n consecutive months ending at and including k, in
// chronological order. January looks back into the previous year.
func (k MonthKey) Window(n int) []MonthKey {
	if n <= 0 {
		return nil
	}
	keys := make([]MonthKey, n)
	cur := k
	for i := n - 1; i >= 0; i-- {
		keys[i] = cur
		cur = cur.Prev()
	}
	return keys
}

// Period is an inclusive range of months.
type Period struct {
	Start MonthKey
	End   MonthKey
}

// Validate reports ErrInvalidPeriod when End precedes Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, p.End, p.Start)
	}
	return nil
}

// Contains reports whether k lies inside the period.
func (p Period) Contains(k MonthKey) bool {
	return !k.Before(p.Start) && !k.After(p.End)
}

// Months lists every month of the period in chronological order.
func (p Period) Months() []MonthKey {
	if p.End.Before(p.Start) {
		return nil
	}
	keys := make([]MonthKey, 0, p.End.MonthsSince(p.Start)+1)
	for k := p.Start; !k.After(p.End); k = k.Next() {
		keys = append(keys, k)
	}
	return keys
}

// Years lists every year touched by the period.
func (p Period) Years() []int {
	if p.End.Before(p.Start) {
		return nil
	}
	years := make([]int, 0, p.End.Year-p.Start.Year+1)
	for y := p.Start.Year; y <= p.End.Year; y++ {
		years = append(years, y)
	}
	return years
}

// FirstCompleteWindow returns the earliest month whose trailing n-month window
// lies entirely inside the period.
func (p Period) FirstCompleteWindow(n int) MonthKey {
	return p.Start.Add(n - 1)
}

// CalendarMonths lists January through December.
func CalendarMonths() []time.Month {
	months := make([]time.Month, 12)
	for i := range months {
		months[i] = time.Month(i + 1)
	}
	return months
}

func monthName(m time.Month) string {
	return strings.ToLower(m.String())
}
