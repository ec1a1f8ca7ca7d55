package reminder

import "time"

type Timer interface {
	Stop() bool
}

// Clock is the scheduler's source of time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Bounds of a relative reminder offset: up to a week ahead.
const (
	MaxRelativeHours   = 168
	MaxRelativeMinutes = 59
)

// RelativeReminder is now plus the given offset, at minute precision.
// Offsets are clamped to [0, MaxRelativeHours] and [0, MaxRelativeMinutes].
func RelativeReminder(now time.Time, hours, minutes int) time.Time {
	hours = min(max(hours, 0), MaxRelativeHours)
	minutes = min(max(minutes, 0), MaxRelativeMinutes)
	at := now.Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute)
	return at.Truncate(time.Minute)
}
