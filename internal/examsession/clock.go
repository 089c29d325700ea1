package examsession

import (
	"fmt"
	"sync"
	"time"
)

// UrgentThreshold is the remaining time under which the countdown is shown as urgent.
const UrgentThreshold = 300

// SessionClock is the local countdown. It never goes below zero.
type SessionClock struct {
	remaining int
}

// NewSessionClock starts at timeLimitMinutes × 60 seconds.
func NewSessionClock(timeLimitMinutes int) SessionClock {
	return SessionClock{remaining: timeLimitMinutes * 60}
}

// Remaining returns the seconds left.
func (c *SessionClock) Remaining() int { return c.remaining }

// Expired reports whether the clock has reached zero.
func (c *SessionClock) Expired() bool { return c.remaining == 0 }

// Tick decrements by one second. expired is true only on the tick that reaches zero.
func (c *SessionClock) Tick() (remaining int, expired bool) {
	if c.remaining == 0 {
		return 0, false
	}
	c.remaining--
	return c.remaining, c.remaining == 0
}

// FormatClock renders seconds as mm:ss. Minutes are not wrapped at 60.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// IsUrgent reports whether the countdown should switch to its urgent style.
func IsUrgent(seconds int) bool {
	return seconds < UrgentThreshold
}

// Scheduler runs fn repeatedly until the returned stop function is called.
// stop must be idempotent.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// TickerScheduler schedules callbacks on a time.Ticker.
type TickerScheduler struct{}

// Every implements Scheduler.
func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
