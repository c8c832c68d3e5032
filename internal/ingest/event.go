package ingest

import (
	"fmt"

	"facility-notify/internal/models"
)

// TaskEvent is the payload published on the task lifecycle topic by the
// facility backend. UserID is empty for building-wide broadcasts.
type TaskEvent struct {
	EventType string                 `json:"event_type"`
	TaskID    string                 `json:"task_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Priority  string                 `json:"priority,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Validate rejects events that cannot produce a deliverable notification.
func (e TaskEvent) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("missing event_type")
	}
	if e.Title == "" {
		return fmt.Errorf("missing title")
	}
	switch e.EventType {
	case models.TypeTaskAssigned, models.TypeTaskCompleted, models.TypeTaskReminder:
		if e.TaskID == "" {
			return fmt.Errorf("missing task_id for %s event", e.EventType)
		}
	case models.TypeTrashcanFull, models.TypeMaintenanceRequired, models.TypeSystemAlert:
	default:
		return fmt.Errorf("unknown event_type %q", e.EventType)
	}
	return nil
}
