package timespec

import (
	"fmt"
	"time"
)

// CustomLayout is the minute-precision format accepted by create-custom,
// e.g. "2025-10-29:13:45". Times are interpreted as UTC.
const CustomLayout = "2006-01-02:15:04"

// Parse parses a time specification into a UTC time.
// Supports three formats:
//   - Custom timestamps: "2025-10-29:13:45"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//   - Go duration format: "1h", "30m", "1h30m" (relative to now, in the past)
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(CustomLayout, spec); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UTC(), nil
	}

	// Duration is relative to now (subtract from current time)
	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use YYYY-MM-DD:HH:MM, RFC3339 like '2025-10-29T13:00:00Z' or a duration like '1h30m')", spec)
}

// ParseCustom parses only the YYYY-MM-DD:HH:MM format.
func ParseCustom(spec string) (time.Time, error) {
	t, err := time.Parse(CustomLayout, spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be in format YYYY-MM-DD:HH:MM (got %q)", spec)
	}
	return t.UTC(), nil
}

// ISO layouts for metadata timestamps, with and without microseconds.
// The offset is always numeric, so UTC renders as +00:00 rather than Z.
const (
	ISOLayout      = "2006-01-02T15:04:05-07:00"
	ISOMicroLayout = "2006-01-02T15:04:05.000000-07:00"
)

// FormatISO renders t in UTC at microsecond precision. The fraction is
// omitted when it is zero.
func FormatISO(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(ISOLayout)
	}
	return t.Format(ISOMicroLayout)
}

// FormatMillis renders a Unix millisecond timestamp as RFC3339 in UTC.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
