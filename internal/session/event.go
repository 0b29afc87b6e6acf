package session

import (
	"time"

	"github.com/ayusman/shotcoach/internal/analysis"
)

// EventType identifies a session event.
type EventType string

const (
	EventState        EventType = "state"
	EventPreview      EventType = "preview"
	EventCountdown    EventType = "countdown"
	EventFrame        EventType = "frame"
	EventCompleted    EventType = "completed"
	EventInsufficient EventType = "insufficient_data"
	EventFailed       EventType = "failed"
)

// Event is published for every visible change of a session. Only the fields
// relevant to Type are set.
type Event struct {
	Type      EventType               `json:"type"`
	State     State                   `json:"state"`
	Time      time.Time               `json:"time"`
	Countdown int                     `json:"countdown,omitempty"`
	Preview   *analysis.PreviewStatus `json:"preview,omitempty"`
	Metric    *analysis.FrameMetric   `json:"metric,omitempty"`
	Result    *Result                 `json:"result,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// IsZero reports whether e is the empty event returned by no-op transitions.
func (e Event) IsZero() bool {
	return e.Type == ""
}
