package enrich

import (
	"fmt"
	"time"
)

// FormatDateTime renders a timestamp the way popups show assignment and
// completion times: relative plus clock time within the last 24 hours,
// otherwise a full date.
func FormatDateTime(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}

	diff := now.Sub(ts)
	minutes := int(diff.Minutes())
	hours := int(diff.Hours())

	if hours < 24 {
		clock := ts.Format("3:04 PM")
		if minutes < 60 {
			return fmt.Sprintf("%dm ago at %s", minutes, clock)
		}
		return fmt.Sprintf("%dh ago at %s", hours, clock)
	}

	return ts.Format("Jan 2, 2006 at 3:04 PM")
}

// FormatRelative renders the short age label shown in the popup footer.
func FormatRelative(ts, now time.Time) string {
	diff := now.Sub(ts)
	seconds := int(diff.Seconds())
	minutes := int(diff.Minutes())
	hours := int(diff.Hours())
	days := hours / 24

	switch {
	case seconds < 60:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return ts.Format("1/2/2006")
	}
}
