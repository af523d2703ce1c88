package codec

import "time"

// TimestampLayout has millisecond precision and a numeric zone offset
// without a colon, e.g. 2024-01-01T00:10:00.000+0000.
const TimestampLayout = "2006-01-02T15:04:05.000-0700"

// FormatTimestamp writes t in the local zone of the encoding process.
func FormatTimestamp(t time.Time) string { return formatTimestamp(t, time.Local) }

func formatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// ParseTimestamp accepts only TimestampLayout.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
