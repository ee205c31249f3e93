package schedule

import (
	"sync"
	"testing"
	"time"
)

func TestIsDueOnFirstCall(t *testing.T) {
	rs := NewRefreshScheduler()
	rs.SetInterval("weather", 180*time.Second)
	now := time.Now()

	if !rs.IsDue("weather", now) {
		t.Errorf("weather should be due before the first refresh")
	}
	if !rs.IsDue("never-configured", now) {
		t.Errorf("an unknown source should be due before the first refresh")
	}
	if !rs.IsRebuildDue(now) {
		t.Errorf("queue rebuild should be due at start")
	}
}

func TestIsDueHasNoSideEffect(t *testing.T) {
	rs := NewRefreshScheduler()
	rs.SetInterval("weather", time.Minute)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !rs.IsDue("weather", now) {
			t.Fatalf("call %d: IsDue changed state", i)
		}
	}
}

func TestIntervalFloor(t *testing.T) {
	rs := NewRefreshScheduler()
	rs.SetInterval("weather", 180*time.Second)
	t0 := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	rs.MarkRefreshed("weather", t0)

	tests := []struct {
		offset time.Duration
		due    bool
	}{
		{0, false},
		{time.Second, false},
		{179 * time.Second, false},
		{180 * time.Second, true},
		{time.Hour, true},
	}
	for _, tt := range tests {
		if got := rs.IsDue("weather", t0.Add(tt.offset)); got != tt.due {
			t.Errorf("IsDue(t0+%v) = %v, want %v", tt.offset, got, tt.due)
		}
	}

	if next := rs.NextDue("weather"); !next.Equal(t0.Add(180 * time.Second)) {
		t.Errorf("NextDue() = %v, want %v", next, t0.Add(180*time.Second))
	}
}

func TestRebuildTimer(t *testing.T) {
	rs := NewRefreshScheduler()
	rs.SetInterval(QueueRebuildTimer, 5*time.Minute)
	t0 := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	rs.MarkRebuilt(t0)
	if rs.IsRebuildDue(t0.Add(4 * time.Minute)) {
		t.Errorf("rebuild due too early")
	}
	if !rs.IsRebuildDue(t0.Add(5 * time.Minute)) {
		t.Errorf("rebuild not due after the interval")
	}

	rs.MarkRebuilt(t0.Add(5 * time.Minute))
	rs.Invalidate(QueueRebuildTimer)
	if !rs.IsRebuildDue(t0.Add(5 * time.Minute)) {
		t.Errorf("rebuild not due after Invalidate")
	}
}

func TestSchedulerConcurrentMarks(t *testing.T) {
	rs := NewRefreshScheduler()
	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "source"
			if i%2 == 0 {
				id = "other"
			}
			rs.SetInterval(id, time.Minute)
			rs.MarkRefreshed(id, now)
			_ = rs.IsDue(id, now)
		}(i)
	}
	wg.Wait()
	if rs.IsDue("source", now) || rs.IsDue("other", now) {
		t.Errorf("sources should not be due right after being marked")
	}
}
