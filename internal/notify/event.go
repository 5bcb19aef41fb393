// Package notify carries change notifications from the record store to
// interested consumers. Delivery is at-least-once and unordered across
// keys; consumers must tolerate duplicates. The Registry guarantees at
// most one live broker subscription per (channel, table, filter) key.
package notify

import (
	"strings"
	"time"
)

// Tables published by the record store.
const (
	TableLessonProgress = "lesson_progress"
	TableCourseProgress = "course_progress"
)

// Event describes one changed record.
type Event struct {
	Table   string    `json:"table"`
	UserID  string    `json:"user_id"`
	Key     string    `json:"key"` // lesson or course ID
	At      time.Time `json:"at"`
	Payload []byte    `json:"payload,omitempty"` // JSON-encoded record
}

// Handler consumes change events. Handlers run on the delivering
// goroutine and must not block.
type Handler func(Event)

// Key identifies one logical subscription.
type Key struct {
	Channel string
	Table   string
	Filter  string // "user_id=<id>" or empty for all
}

// Matches reports whether an event passes the key's table and filter.
func (k Key) Matches(ev Event) bool {
	if k.Table != "" && k.Table != ev.Table {
		return false
	}
	if k.Filter == "" {
		return true
	}
	if userID, ok := strings.CutPrefix(k.Filter, "user_id="); ok {
		return userID == ev.UserID
	}
	// Unknown filter syntax matches nothing rather than everything.
	return false
}
