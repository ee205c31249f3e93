package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// TimeOfDay is an offset from midnight, in [0, 24h].
type TimeOfDay time.Duration

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", value)
	}
	var fields [3]int64
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time of day %q", value)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	tod := time.Duration(fields[0])*time.Hour + time.Duration(fields[1])*time.Minute + time.Duration(fields[2])*time.Second
	if tod > day {
		return 0, fmt.Errorf("time of day %q is past 24:00", value)
	}
	return TimeOfDay(tod), nil
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int64(d/time.Hour), int64(d%time.Hour/time.Minute))
}

func (t *TimeOfDay) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		return err
	}
	*t = tod
	return nil
}

func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// Window maps the [Start, End) time-of-day range to a schedule. End before
// Start wraps around midnight.
type Window struct {
	Schedule string    `yaml:"schedule"`
	Start    TimeOfDay `yaml:"start"`
	End      TimeOfDay `yaml:"end"`
}

type segment struct {
	start, end TimeOfDay
	schedule   string
}

// Dispatcher resolves wall-clock instants to schedule ids. The segment table
// covers the whole day, so Resolve never fails.
type Dispatcher struct {
	segments        []segment
	defaultSchedule string
}

func NewDispatcher(windows []Window, defaultSchedule string) (*Dispatcher, error) {
	var segments []segment
	for i, w := range windows {
		if w.Schedule == "" {
			return nil, fmt.Errorf("window %d has no schedule", i)
		}
		if w.Start < 0 || time.Duration(w.Start) >= day || w.End < 0 || time.Duration(w.End) > day {
			return nil, fmt.Errorf("window %d (%s) is out of the day range", i, w.Schedule)
		}
		switch {
		case w.Start == w.End:
			return nil, fmt.Errorf("window %d (%s) is empty", i, w.Schedule)
		case w.Start < w.End:
			segments = append(segments, segment{w.Start, w.End, w.Schedule})
		default:
			segments = append(segments, segment{w.Start, TimeOfDay(day), w.Schedule})
			if w.End > 0 {
				segments = append(segments, segment{0, w.End, w.Schedule})
			}
		}
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].start < segments[j].start
	})

	var complete []segment
	cursor := TimeOfDay(0)
	for i, s := range segments {
		if i > 0 && s.start < segments[i-1].end {
			return nil, fmt.Errorf("windows %s and %s overlap at %s", segments[i-1].schedule, s.schedule, s.start)
		}
		if s.start > cursor {
			if defaultSchedule == "" {
				return nil, fmt.Errorf("no window covers %s-%s and no default schedule is set", cursor, s.start)
			}
			complete = append(complete, segment{cursor, s.start, defaultSchedule})
		}
		complete = append(complete, s)
		cursor = s.end
	}
	if cursor < TimeOfDay(day) {
		if defaultSchedule == "" {
			return nil, fmt.Errorf("no window covers %s-24:00 and no default schedule is set", cursor)
		}
		complete = append(complete, segment{cursor, TimeOfDay(day), defaultSchedule})
	}

	return &Dispatcher{segments: complete, defaultSchedule: defaultSchedule}, nil
}

func (d *Dispatcher) Resolve(now time.Time) string {
	tod := TimeOfDayOf(now)
	i := sort.Search(len(d.segments), func(i int) bool {
		return d.segments[i].end > tod
	})
	if i < len(d.segments) && d.segments[i].start <= tod {
		return d.segments[i].schedule
	}
	return d.defaultSchedule
}

// Timeline lists the resolved day, one window per contiguous schedule range.
func (d *Dispatcher) Timeline() []Window {
	var timeline []Window
	for _, s := range d.segments {
		if n := len(timeline); n > 0 && timeline[n-1].Schedule == s.schedule && timeline[n-1].End == s.start {
			timeline[n-1].End = s.end
			continue
		}
		timeline = append(timeline, Window{Schedule: s.schedule, Start: s.start, End: s.end})
	}
	return timeline
}

// Schedules returns the distinct schedule ids reachable through Resolve.
func (d *Dispatcher) Schedules() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range d.segments {
		if !seen[s.schedule] {
			seen[s.schedule] = true
			names = append(names, s.schedule)
		}
	}
	return names
}
