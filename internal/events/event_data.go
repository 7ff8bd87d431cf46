package events

import (
	"encoding/json"
	"time"
)

// EventType identifies an event.
type EventType string

const (
	// ScanStarted is emitted when an analysis run begins
	ScanStarted EventType = "ScanStarted"
	// ScanProgress is emitted at checkpoints
	ScanProgress EventType = "ScanProgress"
	// CheckpointFailed is emitted when a checkpoint could not be persisted
	CheckpointFailed EventType = "CheckpointFailed"
	// ScanCompleted is emitted when a run finishes or is interrupted
	ScanCompleted EventType = "ScanCompleted"
	// ScanFailed is emitted when a run ends with an error
	ScanFailed EventType = "ScanFailed"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ProgressInfo contains progress information for a run. Counts are decimal
// strings because they do not fit machine integers.
type ProgressInfo struct {
	Current  string  `json:"current"`
	Total    string  `json:"total"`
	Percent  float64 `json:"percent"`
	Message  string  `json:"message,omitempty"`
	Phase    string  `json:"phase,omitempty"`
	SubPhase string  `json:"sub_phase,omitempty"`

	// Details carries checkpoint metrics such as blocks_remaining and rank_size
	Details map[string]interface{} `json:"details,omitempty"`
}

// ScanStatusData contains data for run lifecycle events
type ScanStatusData struct {
	RunID     string        `json:"run_id"`
	Analysis  string        `json:"analysis"`
	Status    string        `json:"status"` // "started", "progress", "checkpoint_failed", "completed", "failed"
	Progress  *ProgressInfo `json:"progress,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  float64       `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// EventType returns the event type matching Status
func (d *ScanStatusData) EventType() EventType {
	switch d.Status {
	case "progress":
		return ScanProgress
	case "checkpoint_failed":
		return CheckpointFailed
	case "completed":
		return ScanCompleted
	case "failed":
		return ScanFailed
	default:
		return ScanStarted
	}
}

// Event is a published event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// UnmarshalJSON decodes Data into the type registered for the event type
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case ScanStarted, ScanProgress, CheckpointFailed, ScanCompleted, ScanFailed:
		eventData = &ScanStatusData{}
	default:
		eventData = &GenericEventData{Type: aux.Type}
	}
	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
