package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"yarukoto/internal/storage"
	"yarukoto/internal/todo"
)

// Store is the slice of the record store the handler mutates.
type Store interface {
	Insert(ctx context.Context, it todo.Item) (int64, error)
	Update(ctx context.Context, id int64, set []storage.Assignment) error
	Delete(ctx context.Context, id int64) error
	Status(ctx context.Context, id int64) (todo.Status, error)
	SetStatus(ctx context.Context, id int64, status todo.Status) error
}

// Invalidator is told after every successful mutation, e.g. to drop a
// cached list.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	store       Store
	invalidator Invalidator
	log         *logrus.Entry
	now         func() time.Time
}

type Option func(*Handler)

func WithInvalidator(inv Invalidator) Option {
	return func(h *Handler) { h.invalidator = inv }
}

func WithLogger(l *logrus.Entry) Option {
	return func(h *Handler) { h.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func New(store Store, opts ...Option) *Handler {
	h := &Handler{
		store: store,
		log:   logrus.NewEntry(logrus.StandardLogger()),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type CreateRequest struct {
	Title        string
	Description  string
	Priority     string
	DueDate      *time.Time
	ReminderDate *time.Time
	Tags         string
}

// UpdateRequest carries a title, which is always required, and a partial
// set of other fields. Absent fields keep their stored value.
type UpdateRequest struct {
	ID           int64
	Title        string
	Description  todo.Field[string]
	Priority     todo.Field[string]
	DueDate      todo.Field[time.Time]
	ReminderDate todo.Field[time.Time]
	Tags         todo.Field[string]
}

func (h *Handler) Create(ctx context.Context, req CreateRequest) (int64, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return 0, todo.Required("title")
	}

	reminder := req.ReminderDate
	if reminder == nil && req.DueDate != nil {
		due := *req.DueDate
		reminder = &due
	}

	it := todo.Item{
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		Status:       todo.StatusPending,
		Priority:     todo.ParsePriority(req.Priority),
		DueDate:      req.DueDate,
		ReminderDate: reminder,
		Tags:         strings.TrimSpace(req.Tags),
		CreatedAt:    h.now(),
	}
	id, err := h.store.Insert(ctx, it)
	if err != nil {
		return 0, h.storageError("insert", err)
	}
	h.changed(ctx)
	h.log.WithFields(logrus.Fields{"id": id, "priority": it.Priority}).Info("todo created")
	return id, nil
}

func (h *Handler) Update(ctx context.Context, req UpdateRequest) error {
	if req.ID <= 0 {
		return todo.Required("id")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return todo.Required("title")
	}

	set := []storage.Assignment{storage.Assign("title", title)}
	if req.Description.Present() {
		v, _ := req.Description.Get()
		set = append(set, storage.Assign("description", strings.TrimSpace(v)))
	}
	if req.ReminderDate.Present() {
		set = append(set, storage.Assign("reminder_date", req.ReminderDate.Ptr()))
	}
	if req.Priority.Present() {
		v, _ := req.Priority.Get()
		set = append(set, storage.Assign("priority", todo.ParsePriority(v)))
	}
	if req.DueDate.Present() {
		set = append(set, storage.Assign("due_date", req.DueDate.Ptr()))
	}
	if req.Tags.Present() {
		v, _ := req.Tags.Get()
		var tags *string
		if v = strings.TrimSpace(v); v != "" {
			tags = &v
		}
		set = append(set, storage.Assign("tags", tags))
	}

	if err := h.store.Update(ctx, req.ID, set); err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			return err
		}
		return h.storageError("update", err)
	}
	h.changed(ctx)
	h.log.WithFields(logrus.Fields{"id": req.ID, "fields": len(set)}).Info("todo updated")
	return nil
}

func (h *Handler) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return todo.Required("id")
	}
	if err := h.store.Delete(ctx, id); err != nil {
		return h.storageError("delete", err)
	}
	h.changed(ctx)
	h.log.WithField("id", id).Info("todo deleted")
	return nil
}

// ToggleStatus flips pending and completed and returns the new status.
// An unknown id reports todo.ErrNotFound.
func (h *Handler) ToggleStatus(ctx context.Context, id int64) (todo.Status, error) {
	if id <= 0 {
		return "", todo.Required("id")
	}
	current, err := h.store.Status(ctx, id)
	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			return "", err
		}
		return "", h.storageError("read status", err)
	}
	next := current.Toggle()
	if err := h.store.SetStatus(ctx, id, next); err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			return "", err
		}
		return "", h.storageError("set status", err)
	}
	h.changed(ctx)
	h.log.WithFields(logrus.Fields{"id": id, "status": next}).Info("todo status toggled")
	return next, nil
}

func (h *Handler) storageError(op string, err error) error {
	h.log.WithError(err).WithField("op", op).Error("storage failure")
	return &todo.StorageError{Op: op, Err: err}
}

func (h *Handler) changed(ctx context.Context) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.Invalidate(ctx); err != nil {
		h.log.WithError(err).Warn("cache invalidation failed")
	}
}
