// Package timeutil provides the injectable clock and calendar-date helpers
// used by streak, reset and spaced-repetition logic. Every calendar
// computation happens in the clock's location so that "today" means the
// learner-facing day, not the UTC day.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultLocationName is the platform's home timezone.
const DefaultLocationName = "Asia/Ho_Chi_Minh"

// fallbackZone is used when the tz database is not available on the host.
// Vietnam has no DST, so a fixed offset is exact.
var fallbackZone = time.FixedZone(DefaultLocationName, 7*60*60)

// LoadLocation resolves an IANA name, falling back to a fixed UTC+7 zone
// for the default name when tzdata is missing.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultLocationName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultLocationName {
			return fallbackZone, nil
		}
		return nil, fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	return loc, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock is the single source of "now" for the engine.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock returns a wall clock in loc (UTC when nil).
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// Now implements Clock.
func (c *SystemClock) Now() time.Time { return time.Now().In(c.loc) }

// Location implements Clock.
func (c *SystemClock) Location() *time.Location { return c.loc }

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Location implements Clock.
func (c *ManualClock) Location() *time.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Location()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// AdvanceDays moves the clock forward by n calendar days.
func (c *ManualClock) AdvanceDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}

// Today returns the current calendar date of clock c.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// ═══════════════════════════════════════════════════════════════════════════
// Calendar dates
// ═══════════════════════════════════════════════════════════════════════════

// A calendar date is represented as a time.Time at 00:00 UTC carrying the
// year/month/day of the local day. This keeps dates comparable with == and
// round-trips cleanly through Postgres DATE columns.

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// DateIn returns the calendar date of t as seen in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return DateOf(t.In(loc))
}

// AddDays shifts a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return DateOf(date).AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonth reports whether a and b fall in the same month of the same year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// StartOfWeek returns the Monday of date's week.
func StartOfWeek(date time.Time) time.Time {
	d := DateOf(date)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return d.AddDate(0, 0, -(weekday - 1))
}

// StartOfMonth returns the first day of date's month.
func StartOfMonth(date time.Time) time.Time {
	return Date(date.Year(), date.Month(), 1)
}

// IsMonday reports whether date is a Monday.
func IsMonday(date time.Time) bool {
	return date.Weekday() == time.Monday
}

// IsFirstOfMonth reports whether date is the first day of its month.
func IsFirstOfMonth(date time.Time) bool {
	return date.Day() == 1
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(date time.Time) string {
	return date.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse date %q: %w", s, err)
	}
	return t, nil
}

// DatePtr returns a pointer to a copy of date.
func DatePtr(date time.Time) *time.Time {
	d := DateOf(date)
	return &d
}

// FormatDays renders a review interval for humans.
func FormatDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
