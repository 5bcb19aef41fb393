package player

import "time"

// tickMsg drives the playback position display and the telemetry
// reporting cadence.
type tickMsg time.Time

// noticeMsg carries a store notice into the update loop.
type noticeMsg struct {
	text string
}

// clearNoticeMsg removes a displayed notice after its hold period.
type clearNoticeMsg struct {
	seq int
}
