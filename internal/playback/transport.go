// Package playback drives the single active audio transport through
// lesson selection, completion detection and auto-advance.
package playback

import (
	"context"
	"sync"
	"time"
)

// Transport is the audio boundary. Exactly one lesson's media is loaded
// at a time; Load replaces it. Implementations call the OnEnded
// callback once when playback reaches the end of the loaded media.
type Transport interface {
	Load(ctx context.Context, audioRef string, duration time.Duration) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	SetOnEnded(fn func())
}

// ClockTransport simulates an audio transport with wall-clock time, so
// the TUI is fully usable without an audio device. Position advances in
// real time while playing and the end event fires when the clock
// reaches the lesson duration.
type ClockTransport struct {
	mu        sync.Mutex
	audioRef  string
	duration  time.Duration
	basePos   time.Duration
	startedAt time.Time
	playing   bool
	onEnded   func()
	endTimer  *time.Timer
}

// NewClockTransport creates a stopped, unloaded transport.
func NewClockTransport() *ClockTransport {
	return &ClockTransport{}
}

func (t *ClockTransport) Load(_ context.Context, audioRef string, duration time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	t.audioRef = audioRef
	t.duration = duration
	t.basePos = 0
	t.playing = false
	return nil
}

func (t *ClockTransport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return nil
	}
	t.playing = true
	t.startedAt = time.Now()
	t.armTimerLocked()
	return nil
}

func (t *ClockTransport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return nil
	}
	t.basePos = t.positionLocked()
	t.playing = false
	t.stopTimerLocked()
	return nil
}

func (t *ClockTransport) Seek(pos time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if pos > t.duration {
		pos = t.duration
	}
	t.basePos = pos
	t.startedAt = time.Now()
	if t.playing {
		t.armTimerLocked()
	}
	return nil
}

func (t *ClockTransport) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked()
}

func (t *ClockTransport) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

func (t *ClockTransport) SetOnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *ClockTransport) positionLocked() time.Duration {
	pos := t.basePos
	if t.playing {
		pos += time.Since(t.startedAt)
	}
	if pos > t.duration {
		pos = t.duration
	}
	return pos
}

func (t *ClockTransport) armTimerLocked() {
	t.stopTimerLocked()
	remaining := t.duration - t.positionLocked()
	if remaining < 0 {
		remaining = 0
	}
	t.endTimer = time.AfterFunc(remaining, t.fireEnded)
}

func (t *ClockTransport) stopTimerLocked() {
	if t.endTimer != nil {
		t.endTimer.Stop()
		t.endTimer = nil
	}
}

func (t *ClockTransport) fireEnded() {
	t.mu.Lock()
	t.basePos = t.duration
	t.playing = false
	t.stopTimerLocked()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
