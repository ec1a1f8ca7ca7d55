package todo

import (
	"fmt"
	"strings"
	"time"
)

// StorageLayout is the fixed-width UTC text form timestamps are stored in,
// so that lexical order in SQL matches chronological order.
const StorageLayout = "2006-01-02T15:04:05Z"

// InputLayout matches what a datetime-local form control posts.
const InputLayout = "2006-01-02T15:04"

const dateOnly = "2006-01-02"

var wallLayouts = []string{
	InputLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	dateOnly,
}

// ParseTime accepts RFC3339 or one of the wall-clock layouts above. Wall
// clock values are read in loc; a date alone means the start of that day.
func ParseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	for _, layout := range wallLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("use YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC3339, got %q", v)
}

func FormatStorage(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(StorageLayout)
}

func ParseStorage(v string) (time.Time, error) {
	if t, err := time.Parse(StorageLayout, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// FormatInput renders t for editing, the inverse of ParseTime. Seconds are
// shown only when set.
func FormatInput(t *time.Time) string {
	if t == nil {
		return ""
	}
	l := t.Local()
	if l.Second() != 0 {
		return l.Format("2006-01-02T15:04:05")
	}
	return l.Format(InputLayout)
}
