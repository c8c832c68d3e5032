package models

import (
	"time"
)

// Notification types understood by the popup renderer. Anything else is
// rendered as TypeSystemAlert.
const (
	TypeTrashcanFull        = "trashcan_full"
	TypeTaskAssigned        = "task_assigned"
	TypeTaskCompleted       = "task_completed"
	TypeTaskReminder        = "task_reminder"
	TypeMaintenanceRequired = "maintenance_required"
	TypeSystemAlert         = "system_alert"
)

// Priorities. An absent or unknown priority falls back to PriorityMedium.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is a single notification record as stored in the backend.
// UserID is nil for broadcast notifications visible to every recipient.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    *string                `json:"user_id"`
	Type      string                 `json:"type"`
	Priority  string                 `json:"priority"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	TaskID    *string                `json:"task_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// IsBroadcast reports whether the notification has no specific recipient.
func (n Notification) IsBroadcast() bool {
	return n.UserID == nil
}

// NormalizedType returns the notification type, falling back to
// TypeSystemAlert for unrecognized values.
func (n Notification) NormalizedType() string {
	switch n.Type {
	case TypeTrashcanFull, TypeTaskAssigned, TypeTaskCompleted,
		TypeTaskReminder, TypeMaintenanceRequired, TypeSystemAlert:
		return n.Type
	default:
		return TypeSystemAlert
	}
}

// NormalizedPriority returns the priority, defaulting to PriorityMedium.
func (n Notification) NormalizedPriority() string {
	switch n.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return n.Priority
	default:
		return PriorityMedium
	}
}

// Clone returns a copy of the notification with its own Data map, so that
// enrichment never mutates the caller's record.
func (n Notification) Clone() Notification {
	out := n
	if n.Data != nil {
		out.Data = make(map[string]interface{}, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	return out
}
