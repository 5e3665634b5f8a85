// Package datex normalizes the point-in-time representations that reach the
// core (remote timestamp objects, native time values and ISO strings) into a
// single canonical instant, and implements the fractional-month arithmetic
// used to compute vaccination schedules.
package datex

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

// ErrInvalidDate is returned when a value cannot be interpreted as a point in
// time. Callers exclude such values from date-dependent computations.
var ErrInvalidDate = errors.New("invalid date")

// DaysPerMonth is the fixed month length used for the fractional part of
// AddMonthsFractional.
const DaysPerMonth = 30

// Timestamp is the remote store's timestamp object: seconds since the Unix
// epoch plus a nanosecond remainder.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// Time converts the timestamp to a time.Time in the device location.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds)).In(Location())
}

// TimestampOf builds a remote timestamp for t.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

var location atomic.Pointer[time.Location]

// Location is the device location: zone-less strings are read in it and
// timestamp objects are converted to it, which fixes the calendar date every
// normalized instant falls on. It defaults to UTC.
func Location() *time.Location {
	if loc := location.Load(); loc != nil {
		return loc
	}
	return time.UTC
}

// SetLocation replaces the device location. A nil loc restores UTC.
func SetLocation(loc *time.Location) {
	location.Store(loc)
}

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
	"January 2, 2006",
	"Jan 2, 2006",
}

// Normalize converts v into the canonical instant. Accepted inputs are
// Timestamp (or a decoded map with seconds/nanoseconds keys), time.Time and
// strings in ISO-8601 or plain date form. Strings without zone information
// are interpreted in the device location. Anything else yields
// ErrInvalidDate.
func Normalize(v any) (time.Time, error) {
	return NormalizeIn(v, Location())
}

// NormalizeIn is Normalize with zone-less strings interpreted in loc.
// Timestamp objects are always converted to the device location.
func NormalizeIn(v any, loc *time.Location) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, ErrInvalidDate
	case time.Time:
		if x.IsZero() {
			return time.Time{}, ErrInvalidDate
		}
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, ErrInvalidDate
		}
		return NormalizeIn(*x, loc)
	case Timestamp:
		return x.Time(), nil
	case *Timestamp:
		if x == nil {
			return time.Time{}, ErrInvalidDate
		}
		return x.Time(), nil
	case Instant:
		return x.Time()
	case map[string]any:
		return fromMap(x)
	case string:
		return parseString(x, loc)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v)
	}
}

func fromMap(m map[string]any) (time.Time, error) {
	sec, ok := number(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: timestamp object without seconds", ErrInvalidDate)
	}
	nsec, _ := number(m, "nanoseconds", "_nanoseconds")
	return time.Unix(int64(sec), int64(nsec)).In(Location()), nil
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		case int32:
			return float64(n), true
		}
	}
	return 0, false
}

func parseString(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// AddMonthsFractional adds months to base in two steps: the whole part is
// applied as a calendar month increment (time.AddDate normalization, so
// Jan 31 + 1 month lands on Mar 2 or Mar 3), then the fractional remainder is
// converted to days using a 30-day month and rounded to the nearest day.
// Schedules persisted by earlier versions depend on this exact rule.
func AddMonthsFractional(base time.Time, months float64) time.Time {
	whole := math.Trunc(months)
	days := int(math.Round((months - whole) * DaysPerMonth))
	return base.AddDate(0, int(whole), 0).AddDate(0, 0, days)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc).Equal(DayOf(b, loc))
}

// CivilDay returns the calendar date of t in t's own location, as midnight
// UTC. Two instants fall on the same day exactly when their CivilDay values
// are equal, whatever zones they were normalized in.
func CivilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates t to midnight of its calendar date in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
