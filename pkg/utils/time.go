package utils

import "time"

// Now returns the current time in UTC. All persisted timestamps go
// through it so rows never carry a local zone.
func Now() time.Time {
	return time.Now().UTC()
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
