package clock

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as the elapsed duration since
// midnight. Averages are taken over these durations, never over instants.
type TimeOfDay time.Duration

const day = 24 * time.Hour

// TimeOfDayOf extracts the wall-clock time of t in t's own location. On
// DST transition days this differs from the time elapsed since midnight.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// Seconds since midnight.
func (t TimeOfDay) Seconds() int64 {
	return int64(time.Duration(t) / time.Second)
}

// Duration returns the value as a plain duration.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) }

// String renders HH:MM:SS.
func (t TimeOfDay) String() string {
	s := t.Seconds()
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AverageTimeOfDay averages whole seconds since midnight. ok is false for
// an empty input.
func AverageTimeOfDay(values []TimeOfDay) (avg TimeOfDay, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum int64
	for _, v := range values {
		sum += v.Seconds()
	}
	mean := sum / int64(len(values))
	return TimeOfDay(time.Duration(mean) * time.Second % day), true
}
