package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	A monotonic microsecond clock, process-wide, read-only
 *		from any context. Never wall-clock.
 *
 *---------------------------------------------------------------*/

import "time"

// Clock returns monotonic microseconds. Implementations must never
// go backwards and must be safe to call from any goroutine, including
// the GPIO edge-event handler.
type Clock interface {
	NowUS() int64
}

// SystemClock is the production Clock, backed by time.Now's monotonic
// reading. Init-once / no-teardown: a single value is reused process-wide.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock captures the process epoch once.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) NowUS() int64 {
	return time.Since(c.epoch).Microseconds()
}

// ManualClock lets tests drive Tick(now_us) with synthetic (event, now)
// sequences, per spec.md §9's determinism requirement.
type ManualClock struct {
	us int64
}

func NewManualClock(startUS int64) *ManualClock {
	return &ManualClock{us: startUS}
}

func (c *ManualClock) NowUS() int64 { return c.us }

func (c *ManualClock) Set(us int64) { c.us = us }

func (c *ManualClock) Advance(deltaUS int64) { c.us += deltaUS }
