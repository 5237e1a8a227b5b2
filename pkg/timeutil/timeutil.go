// Package timeutil converts ROS nanosecond time stamps to the forms used in
// containers and reports.
package timeutil

import "time"

const (
	isoLayout      = "2006-01-02T15:04:05-07:00"
	isoMicroLayout = "2006-01-02T15:04:05.000000-07:00"
)

// NanosToSeconds converts nanoseconds since the epoch to float seconds.
func NanosToSeconds(ns int64) float64 {
	return float64(ns) / 1e9
}

// ToTime converts nanoseconds since the epoch to a UTC time.
func ToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// FormatISO formats t as ISO 8601 with a numeric zone offset. Fractional
// seconds are printed to the microsecond, and only when non-zero.
func FormatISO(t time.Time) string {
	if t.Nanosecond()/1000 == 0 {
		return t.Format(isoLayout)
	}
	return t.Format(isoMicroLayout)
}

// Seconds converts a message time to container seconds, relative to base
// when base is non-negative. Times before base clamp to zero.
func Seconds(ns, base int64) float64 {
	if base < 0 {
		return NanosToSeconds(ns)
	}
	if ns < base {
		return 0
	}
	return NanosToSeconds(ns - base)
}
