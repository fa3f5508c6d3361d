package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonthKey_Normalizes(t *testing.T) {
	assert.Equal(t, MonthKey{2000, time.December}, NewMonthKey(2001, 0))
	assert.Equal(t, MonthKey{2002, time.January}, NewMonthKey(2001, 13))
	assert.Equal(t, MonthKey{1999, time.November}, NewMonthKey(2001, -13))
	assert.Equal(t, MonthKey{2001, time.June}, NewMonthKey(2001, time.June))
}

func TestMonthKey_Arithmetic(t *testing.T) {
	jan := NewMonthKey(2002, time.January)

	assert.Equal(t, NewMonthKey(2001, time.December), jan.Prev())
	assert.Equal(t, NewMonthKey(2002, time.February), jan.Next())
	assert.Equal(t, NewMonthKey(2003, time.March), jan.Add(14))
	assert.Equal(t, 14, jan.Add(14).MonthsSince(jan))
	assert.Equal(t, -1, jan.Prev().MonthsSince(jan))

	assert.True(t, jan.Prev().Before(jan))
	assert.True(t, jan.After(jan.Prev()))
	assert.False(t, jan.Before(jan))
	assert.Equal(t, 0, jan.Compare(jan))
	assert.Equal(t, -1, jan.Compare(jan.Next()))
	assert.Equal(t, "2002-01", jan.String())
}

func TestMonthKey_Bounds(t *testing.T) {
	feb := NewMonthKey(2024, time.February)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), feb.Start())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), feb.End())

	loc := time.FixedZone("EAT", 3*3600)
	assert.Equal(t, NewMonthKey(2024, time.January), MonthKeyOf(time.Date(2024, 2, 1, 1, 0, 0, 0, loc)))
}

func TestMonthKey_Window(t *testing.T) {
	t.Run("wraps into previous year", func(t *testing.T) {
		got := NewMonthKey(2002, time.February).Window(4)
		assert.Equal(t, []MonthKey{
			{2001, time.November},
			{2001, time.December},
			{2002, time.January},
			{2002, time.February},
		}, got)
	})

	t.Run("single month", func(t *testing.T) {
		k := NewMonthKey(2002, time.May)
		assert.Equal(t, []MonthKey{k}, k.Window(1))
	})

	t.Run("non-positive", func(t *testing.T) {
		assert.Nil(t, NewMonthKey(2002, time.May).Window(0))
	})
}

func TestPeriod(t *testing.T) {
	p := Period{Start: NewMonthKey(2001, time.November), End: NewMonthKey(2003, time.February)}
	require.NoError(t, p.Validate())

	months := p.Months()
	require.Len(t, months, 16)
	assert.Equal(t, p.Start, months[0])
	assert.Equal(t, p.End, months[15])

	assert.Equal(t, []int{2001, 2002, 2003}, p.Years())
	assert.True(t, p.Contains(NewMonthKey(2002, time.July)))
	assert.False(t, p.Contains(NewMonthKey(2003, time.March)))
	assert.Equal(t, NewMonthKey(2002, time.April), p.FirstCompleteWindow(6))

	bad := Period{Start: p.End, End: p.Start}
	require.ErrorIs(t, bad.Validate(), ErrInvalidPeriod)
	assert.Nil(t, bad.Months())
	assert.Nil(t, bad.Years())
}

func TestValidateWindow(t *testing.T) {
	assert.NoError(t, ValidateWindow(1))
	assert.NoError(t, ValidateWindow(6))
	assert.NoError(t, ValidateWindow(12))
	assert.ErrorIs(t, ValidateWindow(0), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateWindow(13), ErrWindowTooLong)
}

func TestCalendarMonths(t *testing.T) {
	months := CalendarMonths()
	require.Len(t, months, 12)
	assert.Equal(t, time.January, months[0])
	assert.Equal(t, time.December, months[11])
	assert.Equal(t, "november", monthName(time.November))
}
