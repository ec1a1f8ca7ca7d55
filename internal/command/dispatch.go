package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"yarukoto/internal/metrics"
	"yarukoto/internal/reminder"
	"yarukoto/internal/todo"
)

const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionToggleStatus = "toggle_status"
)

// Form is a submitted payload. A key that is present with an empty value
// is different from a missing key.
type Form map[string]string

func (f Form) Lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func (f Form) Get(key string) string {
	return f[key]
}

// Result is what the caller shows the user: a message, and the error
// behind it when the action failed.
type Result struct {
	Action  string      `json:"action"`
	ID      int64       `json:"id,omitempty"`
	Status  todo.Status `json:"status,omitempty"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Dispatch runs the action named by the form and never returns an error:
// failures are folded into the Result.
func (h *Handler) Dispatch(ctx context.Context, f Form) Result {
	action := strings.TrimSpace(f.Get("action"))
	res := h.dispatch(ctx, action, f)
	res.Action = action
	if res.Err != nil {
		res.Message = UserMessage(res.Err)
	}
	metrics.CommandOutcome(action, outcome(res.Err))
	return res
}

func (h *Handler) dispatch(ctx context.Context, action string, f Form) Result {
	switch action {
	case ActionCreate:
		req, err := h.parseCreate(f)
		if err != nil {
			return Result{Err: err}
		}
		id, err := h.Create(ctx, req)
		return Result{ID: id, Message: "To-do added.", Err: err}

	case ActionUpdate:
		req, err := h.parseUpdate(f)
		if err != nil {
			return Result{Err: err}
		}
		err = h.Update(ctx, req)
		return Result{ID: req.ID, Message: "To-do updated.", Err: err}

	case ActionDelete:
		id, err := parseID(f)
		if err != nil {
			return Result{Err: err}
		}
		return Result{ID: id, Message: "To-do deleted.", Err: h.Delete(ctx, id)}

	case ActionToggleStatus:
		id, err := parseID(f)
		if err != nil {
			return Result{Err: err}
		}
		st, err := h.ToggleStatus(ctx, id)
		return Result{ID: id, Status: st, Message: "Status updated.", Err: err}

	case "":
		return Result{Err: todo.Required("action")}
	default:
		return Result{Err: &todo.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}}
	}
}

// UserMessage turns an error into text safe to show. Driver errors stay
// in the log.
func UserMessage(err error) string {
	var ve *todo.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, todo.ErrNotFound):
		return "That to-do no longer exists."
	default:
		return "Could not save your changes. Please try again."
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case todo.IsValidation(err):
		return "invalid"
	case errors.Is(err, todo.ErrNotFound):
		return "not_found"
	default:
		return "storage_error"
	}
}

func (h *Handler) parseCreate(f Form) (CreateRequest, error) {
	req := CreateRequest{
		Title:       f.Get("title"),
		Description: f.Get("description"),
		Priority:    f.Get("priority"),
		Tags:        f.Get("tags"),
	}
	due, err := optionalTime(f, "due_date")
	if err != nil {
		return req, err
	}
	req.DueDate = due.Ptr()

	rem, err := h.reminderField(f)
	if err != nil {
		return req, err
	}
	req.ReminderDate = rem.Ptr()
	return req, nil
}

func (h *Handler) parseUpdate(f Form) (UpdateRequest, error) {
	id, err := parseID(f)
	if err != nil {
		return UpdateRequest{}, err
	}
	req := UpdateRequest{ID: id, Title: f.Get("title")}
	if v, ok := f.Lookup("description"); ok {
		req.Description = todo.Set(v)
	}
	if v, ok := f.Lookup("priority"); ok {
		req.Priority = todo.Set(v)
	}
	if v, ok := f.Lookup("tags"); ok {
		req.Tags = todo.Set(v)
	}
	if req.DueDate, err = optionalTime(f, "due_date"); err != nil {
		return req, err
	}
	if req.ReminderDate, err = h.reminderField(f); err != nil {
		return req, err
	}
	return req, nil
}

// reminderField reads the reminder inputs. A precomputed
// calculated_reminder_date wins over reminder_date; reminder_type selects
// a relative offset from now or no reminder at all.
func (h *Handler) reminderField(f Form) (todo.Field[time.Time], error) {
	switch f.Get("reminder_type") {
	case "none":
		return todo.Null[time.Time](), nil
	case "relative":
		hours, err := optionalInt(f, "reminder_hours", reminder.MaxRelativeHours)
		if err != nil {
			return todo.Omit[time.Time](), err
		}
		minutes, err := optionalInt(f, "reminder_minutes", reminder.MaxRelativeMinutes)
		if err != nil {
			return todo.Omit[time.Time](), err
		}
		return todo.Set(reminder.RelativeReminder(h.now(), hours, minutes)), nil
	}
	if _, ok := f.Lookup("calculated_reminder_date"); ok {
		return optionalTime(f, "calculated_reminder_date")
	}
	return optionalTime(f, "reminder_date")
}

func parseID(f Form) (int64, error) {
	raw := strings.TrimSpace(f.Get("id"))
	if raw == "" {
		return 0, todo.Required("id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &todo.ValidationError{Field: "id", Message: "id must be a positive integer"}
	}
	return id, nil
}

func optionalTime(f Form, key string) (todo.Field[time.Time], error) {
	v, ok := f.Lookup(key)
	if !ok {
		return todo.Omit[time.Time](), nil
	}
	if strings.TrimSpace(v) == "" {
		return todo.Null[time.Time](), nil
	}
	t, err := todo.ParseTime(v, time.Local)
	if err != nil {
		return todo.Omit[time.Time](), todo.Invalid(key, err)
	}
	return todo.Set(t), nil
}

func optionalInt(f Form, key string, limit int) (int, error) {
	v := strings.TrimSpace(f.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > limit {
		return 0, &todo.ValidationError{Field: key, Message: fmt.Sprintf("%s must be a number from 0 to %d", key, limit)}
	}
	return n, nil
}
