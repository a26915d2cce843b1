package server

import (
	"sync/atomic"
	"time"
)

// heartbeatWindow is how recent the last processor heartbeat must be for the
// processor to count as healthy.
const heartbeatWindow = 60 * time.Second

// HeartbeatTracker records the most recent processor heartbeat. A single
// atomic timestamp is enough because only one processor reports.
type HeartbeatTracker struct {
	lastBeatUnixNano atomic.Int64
}

// NewHeartbeatTracker constructs an empty tracker; until the first beat the
// processor is reported unhealthy.
func NewHeartbeatTracker() *HeartbeatTracker {
	return &HeartbeatTracker{}
}

// Beat records a processor heartbeat at the given instant.
func (t *HeartbeatTracker) Beat(at time.Time) {
	t.lastBeatUnixNano.Store(at.UnixNano())
}

// LastBeat returns the most recent heartbeat, or a zero time when none was
// ever recorded.
func (t *HeartbeatTracker) LastBeat() time.Time {
	nanos := t.lastBeatUnixNano.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}

// Healthy reports whether the last heartbeat is younger than the window.
func (t *HeartbeatTracker) Healthy(now time.Time) bool {
	last := t.LastBeat()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < heartbeatWindow
}
