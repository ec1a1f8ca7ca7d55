package reminder

import (
	"time"

	"yarukoto/internal/todo"
)

type DueState string

const (
	DueNone    DueState = ""
	DueOverdue DueState = "overdue"
	DueSoon    DueState = "due_soon"
)

const SoonWindow = 24 * time.Hour

// Classify is computed on demand for display and never stored.
func Classify(it todo.Item, now time.Time) DueState {
	if it.DueDate == nil {
		return DueNone
	}
	due := *it.DueDate
	switch {
	case due.Before(now):
		return DueOverdue
	case due.Sub(now) <= SoonWindow:
		return DueSoon
	default:
		return DueNone
	}
}

func Highlight(items []todo.Item, now time.Time) map[int64]DueState {
	out := make(map[int64]DueState, len(items))
	for _, it := range items {
		if st := Classify(it, now); st != DueNone {
			out[it.ID] = st
		}
	}
	return out
}
