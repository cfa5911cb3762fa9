package publishers

import (
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/bulkcheck/internal/domain"
)

// Event types emitted when a task reaches a terminal status.
const (
	EventTaskExported = "task.exported"
	EventTaskFailed   = "task.failed"
)

// Event represents the payload published downstream.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	ProviderID string      `json:"provider_id"`
	Task       domain.Task `json:"task"`
	OutputPath string      `json:"output_path,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewEvent constructs an Event for a task that finished on the given provider.
func NewEvent(typ, providerID string, task domain.Task, outputPath string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		ProviderID: providerID,
		Task:       task,
		OutputPath: outputPath,
		OccurredAt: time.Now().UTC(),
	}
}

// EventTypeFor maps a terminal task status to its event type.
func EventTypeFor(task domain.Task) string {
	if task.Status == domain.StatusFailed {
		return EventTaskFailed
	}
	return EventTaskExported
}

// attributes are attached to queue messages so consumers can filter without
// decoding the body.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"provider_id": e.ProviderID,
		"event_type":  e.Type,
	}
}
