package apimodel

import "time"

// Status is the answer of GET /api/status.
type Status struct {
	Version       string         `json:"version"`
	State         string         `json:"state"`
	Schedule      string         `json:"schedule"`
	CurrentScreen string         `json:"current_screen"`
	RebuildId     string         `json:"rebuild_id"`
	RebuiltAt     *time.Time     `json:"rebuilt_at,omitempty"`
	QueueLength   int            `json:"queue_length"`
	Sources       []SourceStatus `json:"sources"`
}

type SourceStatus struct {
	Id          string     `json:"id"`
	HasValue    bool       `json:"has_value"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
	AttemptedAt *time.Time `json:"attempted_at,omitempty"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// TimeRef returns nil for the zero time, so it is left out of the JSON.
func TimeRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
