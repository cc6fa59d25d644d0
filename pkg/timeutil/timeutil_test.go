package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	// 2024-01-07 20:00 UTC is already 2024-01-08 in UTC+7.
	instant := time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, Date(2024, 1, 7), DateOf(instant))
	assert.Equal(t, Date(2024, 1, 8), DateIn(instant, loc))
}

func TestManualClock(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	c := NewManualClock(time.Date(2024, 1, 31, 23, 30, 0, 0, loc))

	assert.Equal(t, Date(2024, 1, 31), Today(c))
	assert.Equal(t, loc, c.Location())

	c.Advance(time.Hour)
	assert.Equal(t, Date(2024, 2, 1), Today(c))

	c.AdvanceDays(2)
	assert.Equal(t, Date(2024, 2, 3), Today(c))
}

func TestCalendarHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"add days across month", AddDays(Date(2024, 1, 31), 1), Date(2024, 2, 1)},
		{"start of week from sunday", StartOfWeek(Date(2024, 1, 14)), Date(2024, 1, 8)},
		{"start of week from monday", StartOfWeek(Date(2024, 1, 8)), Date(2024, 1, 8)},
		{"start of month", StartOfMonth(Date(2024, 2, 29)), Date(2024, 2, 1)},
		{"days between", DaysBetween(Date(2024, 1, 7), Date(2024, 1, 9)), 2},
		{"same month", SameMonth(Date(2024, 1, 1), Date(2024, 1, 31)), true},
		{"different year", SameMonth(Date(2023, 1, 1), Date(2024, 1, 1)), false},
		{"monday", IsMonday(Date(2024, 1, 8)), true},
		{"first of month", IsFirstOfMonth(Date(2024, 3, 1)), true},
		{"format days singular", FormatDays(1), "1 day"},
		{"format days plural", FormatDays(7), "7 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 1, 7), d)
	assert.Equal(t, "2024-01-07", FormatDate(d))

	_, err = ParseDate("07/01/2024")
	assert.Error(t, err)
}

func TestLoadLocation_Default(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	_, offset := time.Date(2024, 6, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*60*60, offset)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
