package reminder

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"yarukoto/internal/todo"
)

type pending struct {
	item  todo.Item
	at    time.Time
	timer Timer
	seq   uint64
}

// Scheduler fires one notification per item at its effective reminder
// time. Items already past due fire immediately when first seen. Each
// item notifies at most once for a given reminder time, however the
// catch-up scan and its timer interleave.
type Scheduler struct {
	mu        sync.Mutex
	clock     Clock
	notifier  Notifier
	log       *logrus.Entry
	pending   map[int64]*pending
	delivered map[int64]time.Time
	seq       uint64
	stopped   bool
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Scheduler) { s.log = l }
}

func NewScheduler(n Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     SystemClock(),
		notifier:  n,
		log:       logrus.NewEntry(logrus.StandardLogger()),
		pending:   make(map[int64]*pending),
		delivered: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type firing struct {
	item todo.Item
	at   time.Time
}

// Sync reconciles the schedule with the displayed items: overdue items
// notify now, future ones get a timer, and timers of items that are no
// longer displayed are cancelled.
func (s *Scheduler) Sync(items []todo.Item) {
	s.apply(items, true)
}

// Schedule registers or refreshes a single item and leaves the others alone.
func (s *Scheduler) Schedule(it todo.Item) {
	s.apply([]todo.Item{it}, false)
}

func (s *Scheduler) apply(items []todo.Item, prune bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	seen := make(map[int64]struct{}, len(items))
	var due []firing

	for _, it := range items {
		seen[it.ID] = struct{}{}
		at, ok := it.EffectiveReminder()
		if !ok {
			s.cancelLocked(it.ID)
			delete(s.delivered, it.ID)
			continue
		}
		if last, ok := s.delivered[it.ID]; ok {
			if last.Equal(at) {
				s.cancelLocked(it.ID)
				continue
			}
			// a new reminder time is a new reminder
			delete(s.delivered, it.ID)
		}
		if p, ok := s.pending[it.ID]; ok && p.at.Equal(at) {
			p.item = it
			continue
		}
		s.cancelLocked(it.ID)
		if !at.After(now) {
			due = append(due, firing{item: it, at: at})
			continue
		}
		s.scheduleLocked(it, at, at.Sub(now))
	}

	if prune {
		for id := range s.pending {
			if _, ok := seen[id]; !ok {
				s.cancelLocked(id)
			}
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		s.fire(f.item, f.at, "catch-up")
	}
}

func (s *Scheduler) scheduleLocked(it todo.Item, at time.Time, d time.Duration) {
	s.seq++
	seq := s.seq
	p := &pending{item: it, at: at, seq: seq}
	s.pending[it.ID] = p
	p.timer = s.clock.AfterFunc(d, func() { s.onTimer(it.ID, seq) })
	s.log.WithFields(logrus.Fields{"id": it.ID, "at": at.Format(time.RFC3339)}).Debug("reminder scheduled")
}

func (s *Scheduler) onTimer(id int64, seq uint64) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()
	s.fire(p.item, p.at, "timer")
}

func (s *Scheduler) fire(it todo.Item, at time.Time, source string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if last, ok := s.delivered[it.ID]; ok && last.Equal(at) {
		s.mu.Unlock()
		return
	}
	s.delivered[it.ID] = at
	s.mu.Unlock()

	entry := s.log.WithFields(logrus.Fields{"id": it.ID, "source": source})
	if err := s.notifier.Notify(NotificationFor(it)); err != nil {
		entry.WithError(err).Warn("reminder delivery failed")
		return
	}
	entry.Info("reminder delivered")
}

// Cancel drops a pending timer for the item, if any.
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

func (s *Scheduler) cancelLocked(id int64) {
	p, ok := s.pending[id]
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.pending, id)
}

// Stop cancels every timer. A stopped scheduler ignores further calls.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		s.cancelLocked(id)
	}
	s.stopped = true
}

func (s *Scheduler) Delivered(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.delivered[id]
	return ok
}

// Pending reports when the item's timer will fire.
func (s *Scheduler) Pending(id int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok {
		return time.Time{}, false
	}
	return p.at, true
}

func NotificationFor(it todo.Item) Notification {
	return Notification{
		ItemID: it.ID,
		Title:  "To-do reminder",
		Body:   fmt.Sprintf("Time for %q", it.Title),
	}
}
