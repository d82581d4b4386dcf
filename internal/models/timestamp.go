package models

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for scheduled_time. Layouts without an offset are read in
// the caller's location.
var scheduledTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseScheduledTime turns a scheduled_time value into an absolute instant
func ParseScheduledTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidScheduledTime)
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range scheduledTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidScheduledTime, value)
}

// UnixSeconds drops the fractional part of t, truncating toward zero on both
// sides of the epoch
func UnixSeconds(t time.Time) int64 {
	secs := t.Unix()
	if secs < 0 && t.Nanosecond() > 0 {
		secs++
	}
	return secs
}
