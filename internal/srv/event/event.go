package event

// Api
type ApiEvent struct {
	Result chan error
	Data   interface{}
}

// ApiEventRebuildQueueData makes the queue rebuild due and ends the current dwell.
type ApiEventRebuildQueueData struct{}

// ApiEventNextScreenData ends the current dwell.
type ApiEventNextScreenData struct{}

type ButtonId int64

const (
	NEXT_BUTTON ButtonId = iota
	REBUILD_BUTTON
)

func (b ButtonId) String() string {
	switch b {
	case NEXT_BUTTON:
		return "next"
	case REBUILD_BUTTON:
		return "rebuild"
	}
	return "unknown"
}

// Buttons
type ButtonEvent struct {
	ButtonId ButtonId
}
