package schedule

import (
	"sync"
	"time"
)

// QueueRebuildTimer is the id of the queue rebuild timer.
const QueueRebuildTimer = "queue:rebuild"

// RefreshScheduler tracks when each data source (and the queue rebuild) was
// last attempted. A timer that was never marked is due immediately.
type RefreshScheduler struct {
	lock          sync.RWMutex
	intervals     map[string]time.Duration
	lastRefreshed map[string]time.Time
}

func NewRefreshScheduler() *RefreshScheduler {
	return &RefreshScheduler{
		intervals:     make(map[string]time.Duration),
		lastRefreshed: make(map[string]time.Time),
	}
}

func (rs *RefreshScheduler) SetInterval(id string, interval time.Duration) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if interval < 0 {
		interval = 0
	}
	rs.intervals[id] = interval
}

func (rs *RefreshScheduler) Interval(id string) time.Duration {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	return rs.intervals[id]
}

func (rs *RefreshScheduler) IsDue(id string, now time.Time) bool {
	rs.lock.RLock()
	defer rs.lock.RUnlock()

	last, ok := rs.lastRefreshed[id]
	if !ok {
		return true
	}
	return now.Sub(last) >= rs.intervals[id]
}

// MarkRefreshed records an attempt, successful or not.
func (rs *RefreshScheduler) MarkRefreshed(id string, now time.Time) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.lastRefreshed[id] = now
}

// Invalidate makes the timer due on the next check.
func (rs *RefreshScheduler) Invalidate(id string) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	delete(rs.lastRefreshed, id)
}

func (rs *RefreshScheduler) LastRefreshed(id string) (time.Time, bool) {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	last, ok := rs.lastRefreshed[id]
	return last, ok
}

// NextDue returns the zero time when the timer is already due.
func (rs *RefreshScheduler) NextDue(id string) time.Time {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	last, ok := rs.lastRefreshed[id]
	if !ok {
		return time.Time{}
	}
	return last.Add(rs.intervals[id])
}

func (rs *RefreshScheduler) IsRebuildDue(now time.Time) bool {
	return rs.IsDue(QueueRebuildTimer, now)
}

func (rs *RefreshScheduler) MarkRebuilt(now time.Time) {
	rs.MarkRefreshed(QueueRebuildTimer, now)
}
