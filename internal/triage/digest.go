package triage

import (
	"fmt"
	"strings"
)

// AllClearDigest is the digest text when nothing needs human attention.
const AllClearDigest = "All clear. Nothing needs your attention."

// Summarize renders the action list as a short plain-text digest: a fixed
// all-clear line when no urgent, high, or medium entries exist, otherwise a
// count-down of those three tiers. Presentational only; delivery belongs to
// the notification layer.
func Summarize(actions []ActionRequired) string {
	var urgent, high, medium int
	for _, a := range actions {
		switch a.Priority {
		case ActionPriorityUrgent:
			urgent++
		case ActionPriorityHigh:
			high++
		case ActionPriorityMedium:
			medium++
		}
	}
	if urgent+high+medium == 0 {
		return AllClearDigest
	}

	var b strings.Builder
	b.WriteString("Action required:")
	fmt.Fprintf(&b, "\n  urgent: %d", urgent)
	fmt.Fprintf(&b, "\n  high: %d", high)
	fmt.Fprintf(&b, "\n  medium: %d", medium)
	return b.String()
}
