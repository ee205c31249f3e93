// Package freshness owns the cached results of every data source. Screens only
// read from this cache; fetching happens in Refresh, driven by the refresh
// scheduler.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jypelle/tabelo/internal/srv/provider"
	"github.com/jypelle/tabelo/internal/srv/schedule"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const WeatherSourceId = "weather"

func PredictionsSourceId(route, stopId string) string {
	return "predictions:" + route + ":" + stopId
}

func AlertsSourceId(route string) string {
	return "alerts:" + route
}

// FetchFunc performs exactly one fetch of a source.
type FetchFunc func(ctx context.Context) (interface{}, error)

type Source struct {
	Id       string
	Interval time.Duration
	Fetch    FetchFunc
}

// Entry is the cached state of a source. Value is the last successful result
// and survives failed attempts.
type Entry struct {
	Value       interface{}
	FetchedAt   time.Time
	AttemptedAt time.Time
	Err         error
}

func (e Entry) HasValue() bool {
	return e.Value != nil
}

// Failing reports a last attempt that did not succeed.
func (e Entry) Failing() bool {
	return e.Err != nil
}

// IsStale reports a value older than limit. A zero limit never goes stale.
func (e Entry) IsStale(now time.Time, limit time.Duration) bool {
	if !e.HasValue() {
		return true
	}
	if limit <= 0 {
		return false
	}
	return now.Sub(e.FetchedAt) > limit
}

// FetchError wraps any failure of a fetch: transport, non-2xx or parse error.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UpdateFunc is called after every successful fetch.
type UpdateFunc func(id string, value interface{}, fetchedAt time.Time)

type Coordinator struct {
	lock      sync.RWMutex
	sources   map[string]Source
	entries   map[string]Entry
	scheduler *schedule.RefreshScheduler
	group     singleflight.Group
	now       func() time.Time
	onUpdate  UpdateFunc
}

func NewCoordinator(scheduler *schedule.RefreshScheduler, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		sources:   make(map[string]Source),
		entries:   make(map[string]Entry),
		scheduler: scheduler,
		now:       now,
	}
}

func (c *Coordinator) SetOnUpdate(onUpdate UpdateFunc) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onUpdate = onUpdate
}

// Register declares a source. A non nil initial value (restored from a
// previous run) is served until the first successful fetch replaces it, but
// does not delay that fetch.
func (c *Coordinator) Register(source Source, initial interface{}, fetchedAt time.Time) error {
	if source.Id == "" {
		return errors.New("source without id")
	}
	if source.Fetch == nil {
		return fmt.Errorf("source %s has no fetch function", source.Id)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.sources[source.Id]; ok {
		return fmt.Errorf("source %s already registered", source.Id)
	}
	c.sources[source.Id] = source
	if initial != nil {
		c.entries[source.Id] = Entry{Value: initial, FetchedAt: fetchedAt}
	}
	c.scheduler.SetInterval(source.Id, source.Interval)
	return nil
}

// SourceIds returns the registered ids, sorted.
func (c *Coordinator) SourceIds() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	ids := make([]string, 0, len(c.sources))
	for id := range c.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the cached entry of a source without doing any I/O.
func (c *Coordinator) Get(id string) Entry {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.entries[id]
}

// Refresh fetches a source once. Concurrent calls for the same source share a
// single fetch. The attempt is always recorded, and the cached value is only
// replaced on success.
func (c *Coordinator) Refresh(ctx context.Context, id string) (interface{}, error) {
	c.lock.RLock()
	source, ok := c.sources[id]
	c.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source %s", id)
	}

	value, err, _ := c.group.Do(id, func() (interface{}, error) {
		attemptedAt := c.now()
		c.scheduler.MarkRefreshed(id, attemptedAt)

		value, err := source.Fetch(ctx)
		if err == nil && value == nil {
			err = errors.New("empty result")
		}

		c.lock.Lock()
		entry := c.entries[id]
		entry.AttemptedAt = attemptedAt
		var onUpdate UpdateFunc
		if err != nil {
			err = newFetchError(id, err)
			entry.Err = err
		} else {
			entry.Value = value
			entry.FetchedAt = attemptedAt
			entry.Err = nil
			onUpdate = c.onUpdate
		}
		c.entries[id] = entry
		c.lock.Unlock()

		if onUpdate != nil {
			onUpdate(id, value, attemptedAt)
		}
		return value, err
	})
	return value, err
}

func newFetchError(id string, err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	fetchErr = &FetchError{Source: id, Err: err}
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		fetchErr.StatusCode = statusErr.StatusCode
	}
	return fetchErr
}

// RefreshDue refreshes every due source, at most limit at a time, and returns
// the ids it attempted. Failures are logged, never returned: the cache keeps
// serving the previous value.
func (c *Coordinator) RefreshDue(ctx context.Context, now time.Time, limit int) []string {
	var due []string
	for _, id := range c.SourceIds() {
		if c.scheduler.IsDue(id, now) {
			due = append(due, id)
		}
	}
	if len(due) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var attempted []string
	for _, id := range due {
		if ctx.Err() != nil {
			break
		}
		id := id
		attempted = append(attempted, id)
		g.Go(func() error {
			if _, err := c.Refresh(ctx, id); err != nil {
				logrus.WithField("source", id).Warnf("Unable to refresh: %v", err)
			} else {
				logrus.WithField("source", id).Debugf("Refreshed")
			}
			return nil
		})
	}
	g.Wait()

	return attempted
}

type SourceStatus struct {
	Id          string
	HasValue    bool
	FetchedAt   time.Time
	AttemptedAt time.Time
	NextDueAt   time.Time
	LastError   string
}

// Snapshot describes every source, sorted by id.
func (c *Coordinator) Snapshot() []SourceStatus {
	ids := c.SourceIds()
	statuses := make([]SourceStatus, 0, len(ids))
	for _, id := range ids {
		entry := c.Get(id)
		status := SourceStatus{
			Id:          id,
			HasValue:    entry.HasValue(),
			FetchedAt:   entry.FetchedAt,
			AttemptedAt: entry.AttemptedAt,
			NextDueAt:   c.scheduler.NextDue(id),
		}
		if entry.Err != nil {
			status.LastError = entry.Err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
