package reminder

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"

	"yarukoto/internal/metrics"
)

type Notification struct {
	ItemID int64
	Title  string
	Body   string
}

type Notifier interface {
	Notify(n Notification) error
}

type NotifierFunc func(Notification) error

func (f NotifierFunc) Notify(n Notification) error {
	return f(n)
}

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Dispatcher prefers the native notifier when permission was granted and
// falls back to the in-app toast otherwise, or when native delivery fails.
type Dispatcher struct {
	Native     Notifier
	Fallback   Notifier
	Permission func() Permission
	Log        *logrus.Entry
}

func (d *Dispatcher) Notify(n Notification) error {
	if d.Native != nil && d.Permission != nil && d.Permission() == PermissionGranted {
		err := d.Native.Notify(n)
		if err == nil {
			metrics.ReminderDelivered("native")
			return nil
		}
		if d.Log != nil {
			d.Log.WithError(err).Warn("native notification failed, using toast")
		}
	}
	if d.Fallback == nil {
		return errors.New("no notifier available")
	}
	if err := d.Fallback.Notify(n); err != nil {
		return err
	}
	metrics.ReminderDelivered("toast")
	return nil
}

// TerminalNotifier raises a desktop notification through the terminal
// emulator (OSC 777). Terminals without support ignore the sequence.
type TerminalNotifier struct {
	mu  sync.Mutex
	out *termenv.Output
}

func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: termenv.NewOutput(w)}
}

func (t *TerminalNotifier) Notify(n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.Notify(n.Title, n.Body)
	return nil
}

type Toast struct {
	ID      int
	ItemID  int64
	Message string
	Expires time.Time
}

// Toasts is the in-app fallback: transient messages that expire after a
// fixed lifetime unless dismissed first.
type Toasts struct {
	mu     sync.Mutex
	clock  Clock
	ttl    time.Duration
	next   int
	items  []Toast
	onPush func(Toast)
}

func NewToasts(ttl time.Duration, clock Clock, onPush func(Toast)) *Toasts {
	if clock == nil {
		clock = SystemClock()
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Toasts{clock: clock, ttl: ttl, onPush: onPush}
}

func (q *Toasts) TTL() time.Duration {
	return q.ttl
}

func (q *Toasts) Notify(n Notification) error {
	q.Push(n.ItemID, n.Body)
	return nil
}

func (q *Toasts) Push(itemID int64, msg string) Toast {
	q.mu.Lock()
	q.next++
	t := Toast{ID: q.next, ItemID: itemID, Message: msg, Expires: q.clock.Now().Add(q.ttl)}
	q.items = append(q.items, t)
	onPush := q.onPush
	q.mu.Unlock()

	if onPush != nil {
		onPush(t)
	}
	return t
}

func (q *Toasts) Dismiss(id int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// DismissAll clears every toast and reports how many were showing.
func (q *Toasts) DismissAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Active drops expired toasts and returns the rest, oldest first.
func (q *Toasts) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock.Now()
	kept := q.items[:0]
	for _, t := range q.items {
		if now.Before(t.Expires) {
			kept = append(kept, t)
		}
	}
	q.items = kept
	out := make([]Toast, len(kept))
	copy(out, kept)
	return out
}
