package config

import (
	"errors"
	"strings"
)

// TrackedStop is a transit stop whose arrivals are displayed.
type TrackedStop struct {
	Route      string `yaml:"route"`
	StopId     string `yaml:"stop_id"`
	StopNumber string `yaml:"stop_number,omitempty"`
	StopName   string `yaml:"stop_name"`
	Direction  string `yaml:"direction"`
}

func NewTrackedStop(route, stopId, stopNumber, stopName, direction string) (TrackedStop, error) {
	trackedStop := TrackedStop{
		Route:      strings.TrimSpace(route),
		StopId:     strings.TrimSpace(stopId),
		StopNumber: strings.TrimSpace(stopNumber),
		StopName:   strings.TrimSpace(stopName),
		Direction:  strings.TrimSpace(direction),
	}
	if trackedStop.StopNumber == "" {
		trackedStop.StopNumber = trackedStop.Route
	}
	if err := trackedStop.Validate(); err != nil {
		return TrackedStop{}, err
	}
	return trackedStop, nil
}

func (ts TrackedStop) Validate() error {
	if strings.TrimSpace(ts.Route) == "" {
		return errors.New("missing route")
	}
	if strings.TrimSpace(ts.StopId) == "" {
		return errors.New("missing stop id")
	}
	for _, r := range ts.StopId {
		if r < '0' || r > '9' {
			return errors.New("stop id must be numeric")
		}
	}
	if strings.TrimSpace(ts.StopName) == "" {
		return errors.New("missing stop name")
	}
	return nil
}

func (ts TrackedStop) String() string {
	return ts.Route + " - " + ts.StopName
}
