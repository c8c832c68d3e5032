package popup

import "facility-notify/internal/models"

// Style is the icon/accent pair a popup renders with.
type Style struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

var styles = map[string]Style{
	models.TypeTrashcanFull:        {Icon: "alert", Color: "#f44336"},
	models.TypeTaskAssigned:        {Icon: "clipboard", Color: "#2196F3"},
	models.TypeTaskCompleted:       {Icon: "check", Color: "#4CAF50"},
	models.TypeTaskReminder:        {Icon: "clock", Color: "#FF9800"},
	models.TypeMaintenanceRequired: {Icon: "wrench", Color: "#FF5722"},
	models.TypeSystemAlert:         {Icon: "warning", Color: "#9C27B0"},
}

// StyleFor maps a notification type to its popup style, defaulting to the
// system alert style for anything unrecognized.
func StyleFor(notificationType string) Style {
	if s, ok := styles[notificationType]; ok {
		return s
	}
	return styles[models.TypeSystemAlert]
}
