// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify keeps the user-visible notifications of a session. Entries
// expire on their own and can be dismissed early.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification for display.
type Kind string

const (
	KindInfo      Kind = "info"
	KindTransient Kind = "transient_error"
	KindError     Kind = "error"
)

// Notification is a plain-language message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier is what components use to surface failures.
type Notifier interface {
	Notify(kind Kind, message string)
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Kind, string) {}

const defaultTTL = 8 * time.Second

// Center stores active notifications and fans them out to subscribers.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries []Notification
	subs    map[chan Notification]struct{}
}

// NewCenter creates a Center whose entries live for ttl (8s when zero).
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Center{
		ttl:  ttl,
		now:  time.Now,
		subs: make(map[chan Notification]struct{}),
	}
}

// Notify records a notification and delivers it to subscribers. Slow
// subscribers miss messages rather than block the caller.
func (c *Center) Notify(kind Kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.pruneLocked(now)
	c.entries = append(c.entries, n)

	for ch := range c.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Active returns unexpired notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	out := make([]Notification, len(c.entries))
	copy(out, c.entries)
	return out
}

// Dismiss removes a notification. It reports whether the id was active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.entries {
		if n.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribe returns a channel of new notifications and a cancel func that
// closes it.
func (c *Center) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.entries[:0]
	for _, n := range c.entries {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.entries = kept
}
