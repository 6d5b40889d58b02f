package app

import (
	"sync"
	"time"
)

// NotificationKind classifies user-visible notifications.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// NotificationSink receives user-visible notifications. Engines emit into it
// but never own its lifecycle.
type NotificationSink interface {
	Emit(kind NotificationKind, message string)
}

// NotificationSinkFunc adapts a function to NotificationSink.
type NotificationSinkFunc func(kind NotificationKind, message string)

// Emit calls f.
func (f NotificationSinkFunc) Emit(kind NotificationKind, message string) {
	if f != nil {
		f(kind, message)
	}
}

// DiscardNotifications drops every notification.
var DiscardNotifications NotificationSink = NotificationSinkFunc(func(NotificationKind, string) {})

// Notification is one emitted message.
type Notification struct {
	Kind    NotificationKind
	Message string
	At      time.Time
}

// Notifications is a bounded, concurrency-safe queue of notifications.
type Notifications struct {
	mu    sync.Mutex
	items []Notification
	limit int
	clock Clock
}

// NewNotifications constructs a queue that keeps at most limit entries.
func NewNotifications(limit int, clock Clock) *Notifications {
	if limit <= 0 {
		limit = 32
	}
	if clock == nil {
		clock = time.Now
	}
	return &Notifications{limit: limit, clock: clock}
}

// Emit appends one notification, dropping the oldest past the limit.
func (n *Notifications) Emit(kind NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{Kind: kind, Message: message, At: n.clock()})
	if over := len(n.items) - n.limit; over > 0 {
		n.items = append([]Notification(nil), n.items[over:]...)
	}
}

// Latest returns the most recent notification.
func (n *Notifications) Latest() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) == 0 {
		return Notification{}, false
	}
	return n.items[len(n.items)-1], true
}

// Drain returns and clears all queued notifications.
func (n *Notifications) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.items
	n.items = nil
	return out
}
