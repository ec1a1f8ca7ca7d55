package ui

import (
	"sync"

	"yarukoto/internal/reminder"
)

// Consent is the notification permission, shared between the model and
// the reminder dispatcher running on timer goroutines.
type Consent struct {
	mu   sync.Mutex
	perm reminder.Permission
	save func(reminder.Permission) error
}

func NewConsent(p reminder.Permission, save func(reminder.Permission) error) *Consent {
	switch p {
	case reminder.PermissionGranted, reminder.PermissionDenied:
	default:
		p = reminder.PermissionDefault
	}
	return &Consent{perm: p, save: save}
}

func (c *Consent) Permission() reminder.Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perm
}

// Decide records the answer for this session and persists it. The
// in-memory answer stands even if saving fails.
func (c *Consent) Decide(granted bool) error {
	p := reminder.PermissionDenied
	if granted {
		p = reminder.PermissionGranted
	}
	c.mu.Lock()
	c.perm = p
	c.mu.Unlock()
	if c.save == nil {
		return nil
	}
	return c.save(p)
}
