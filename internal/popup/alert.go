package popup

import (
	"html"
	"strings"
	"time"

	"facility-notify/internal/enrich"
	"facility-notify/internal/models"
)

// TaskInfo is the secondary detail block shown on task-related popups.
type TaskInfo struct {
	AssignedTime  string `json:"assigned_time,omitempty"`
	CompletedTime string `json:"completed_time,omitempty"`
	StaffName     string `json:"staff_name,omitempty"`
}

// Alert is a fully rendered popup payload. Title and body are HTML-escaped
// here so no sink ever sees untrusted markup.
type Alert struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Priority      string    `json:"priority"`
	Icon          string    `json:"icon"`
	Color         string    `json:"color"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	TimeLabel     string    `json:"time_label"`
	PriorityLabel string    `json:"priority_label,omitempty"`
	TaskInfo      *TaskInfo `json:"task_info,omitempty"`
}

// Render builds the popup payload for a notification record.
func Render(n models.Notification, now time.Time) Alert {
	notificationType := n.NormalizedType()
	priority := n.NormalizedPriority()
	style := StyleFor(notificationType)

	a := Alert{
		ID:        n.ID,
		Type:      notificationType,
		Priority:  priority,
		Icon:      style.Icon,
		Color:     style.Color,
		Title:     html.EscapeString(n.Title),
		Body:      html.EscapeString(n.Body),
		TimeLabel: enrich.FormatRelative(n.CreatedAt, now),
	}
	if priority == models.PriorityUrgent || priority == models.PriorityHigh {
		a.PriorityLabel = strings.ToUpper(priority)
	}
	if info := taskInfo(n, notificationType); info != nil {
		a.TaskInfo = info
	}
	return a
}

func taskInfo(n models.Notification, notificationType string) *TaskInfo {
	switch notificationType {
	case models.TypeTaskAssigned, models.TypeTaskCompleted, models.TypeTaskReminder:
	default:
		return nil
	}
	if len(n.Data) == 0 {
		return nil
	}

	info := &TaskInfo{
		AssignedTime:  escapedField(n.Data, "assigned_time"),
		CompletedTime: escapedField(n.Data, "completed_time"),
		StaffName:     escapedField(n.Data, "staff_name"),
	}
	if *info == (TaskInfo{}) {
		return nil
	}
	return info
}

func escapedField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return html.EscapeString(v)
	}
	return ""
}
