// Package pacing caps the frame rate when vsync is off.
package pacing

import "time"

const spinWindow = 200 * time.Microsecond

// Limiter paces frames against a fixed schedule so short frames do not
// accumulate drift.
type Limiter struct {
	next  time.Time
	now   func() time.Time
	sleep func(time.Duration)
}

func NewLimiter() *Limiter {
	return &Limiter{now: time.Now, sleep: time.Sleep}
}

// Wait blocks until the next frame is due at limit frames per second.
// A limit of zero or less disables pacing and resets the schedule.
func (l *Limiter) Wait(limit int) {
	if limit <= 0 {
		l.next = time.Time{}
		return
	}

	target := time.Second / time.Duration(limit)

	if l.next.IsZero() {
		l.next = l.now().Add(target)
	} else {
		l.next = l.next.Add(target)
	}

	for {
		remaining := l.next.Sub(l.now())
		if remaining <= 0 {
			break
		}
		if remaining > spinWindow {
			l.sleep(remaining - spinWindow)
		}
		// spin for the last stretch; sleep granularity is too coarse for high caps
		if !l.next.After(l.now()) {
			break
		}
	}

	// resync after a hitch instead of racing to catch up
	if late := l.now().Sub(l.next); late > target {
		l.next = l.now().Add(target)
	}
}
