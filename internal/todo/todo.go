package todo

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Toggle returns the opposite status. Anything that is not pending is
// treated as completed so a corrupt value flips back to pending.
func (s Status) Toggle() Status {
	if s == StatusPending {
		return StatusCompleted
	}
	return StatusPending
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func Priorities() []Priority {
	out := make([]Priority, len(priorities))
	copy(out, priorities)
	return out
}

func (p Priority) Valid() bool {
	for _, v := range priorities {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePriority maps raw input onto a priority. Unknown values fall back
// to medium.
func ParsePriority(v string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(v)))
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// Raise and Lower step through high > medium > low, saturating at the ends.
func (p Priority) Raise() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	default:
		return PriorityHigh
	}
}

func (p Priority) Lower() Priority {
	switch p {
	case PriorityHigh:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type Item struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ReminderDate *time.Time `json:"reminder_date"`
	Tags         string     `json:"tags"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (it Item) Completed() bool {
	return it.Status == StatusCompleted
}

func (it Item) TagList() []string {
	return ParseTags(it.Tags)
}

// EffectiveReminder is the time the item should notify at: the reminder
// when one is set, otherwise the due date.
func (it Item) EffectiveReminder() (time.Time, bool) {
	if it.ReminderDate != nil {
		return *it.ReminderDate, true
	}
	if it.DueDate != nil {
		return *it.DueDate, true
	}
	return time.Time{}, false
}

func (it Item) String() string {
	return fmt.Sprintf("#%d %s", it.ID, it.Title)
}

// ParseTags splits a comma separated tag string into trimmed, non-empty tokens.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tags = append(tags, p)
	}
	return tags
}

// NormalizeTags rewrites a tag string into its canonical "a, b, c" form.
func NormalizeTags(raw string) string {
	return strings.Join(ParseTags(raw), ", ")
}
