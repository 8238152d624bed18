package metrics

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnassignedLabel is shown for empty project and assignee values.
const UnassignedLabel = "Unassigned"

// DisplayName title-cases a normalized grouping key for presentation.
func DisplayName(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return UnassignedLabel
	}
	// Casers carry state; one per call keeps DisplayName goroutine-safe.
	return cases.Title(language.English).String(key)
}

// Badge labels.
const (
	BadgeDone       = "✓ Done"
	BadgeInProgress = "→ In Progress"
	BadgeOpen       = "○ Open"
	BadgeArchived   = "✕ Archived"
)

var badgeVocabulary = map[string]string{
	"done":        BadgeDone,
	"complete":    BadgeDone,
	"completed":   BadgeDone,
	"🟢":           BadgeDone,
	"working":     BadgeInProgress,
	"in progress": BadgeInProgress,
	"in-progress": BadgeInProgress,
	"progress":    BadgeInProgress,
	"open":        BadgeOpen,
	"not started": BadgeOpen,
	"todo":        BadgeOpen,
	"to do":       BadgeOpen,
	"archived":    BadgeArchived,
	"archive":     BadgeArchived,
}

// BadgeLabel returns the status badge text. It matches whole values only;
// anything unknown is title-cased as-is and blank input yields "".
func BadgeLabel(status string) string {
	s := normalize(status)
	if s == "" {
		return ""
	}
	if label, ok := badgeVocabulary[s]; ok {
		return label
	}
	return cases.Title(language.English).String(strings.TrimSpace(status))
}

// RelativeDate renders a YYYY-MM-DD value relative to now ("Tomorrow",
// "3 days ago", "In 2 weeks"). Unparsable values are returned unchanged.
func RelativeDate(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	d, ok := parseDate(value, now.Location())
	if !ok {
		return value
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	diff := calendarDays(today, d)

	switch {
	case diff == 0:
		return "Today"
	case diff == 1:
		return "Tomorrow"
	case diff == -1:
		return "Yesterday"
	case diff > 1 && diff <= 7:
		return fmt.Sprintf("In %d days", diff)
	case diff < -1 && diff >= -7:
		return fmt.Sprintf("%d days ago", -diff)
	case diff > 7 && diff <= 30:
		w := diff / 7
		return fmt.Sprintf("In %d %s", w, plural(w, "week"))
	case diff < -7 && diff >= -30:
		w := -diff / 7
		return fmt.Sprintf("%d %s ago", w, plural(w, "week"))
	default:
		return d.Format("Jan 02, 2006")
	}
}

// calendarDays counts day boundaries from a to b. Both must be midnights in
// the same location; rounding absorbs DST shifts.
func calendarDays(a, b time.Time) int {
	h := b.Sub(a).Hours() / 24
	if h < 0 {
		return -int(-h + 0.5)
	}
	return int(h + 0.5)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
