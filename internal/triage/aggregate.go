package triage

import (
	"fmt"
	"time"
)

// Aggregation parameters.
const (
	deadlineHorizonHours = 24.0
	reviewBandFloor      = 60.0
	maxGroupingActions   = 3
)

// Aggregate merges post-triage items and grouping proposals into a single
// ranked action list, highest priority first: urgent, high, medium, then up
// to three grouping-derived entries at low. Empty input yields an empty
// list; rendering "no action required" is the caller's concern.
func (e *Engine) Aggregate(items []WorkItem, groupings []SmartGrouping) []ActionRequired {
	now := e.now()
	actions := make([]ActionRequired, 0, 3+maxGroupingActions)

	var urgentIDs []string
	for _, it := range items {
		if it.Lane == LaneNewDetection && it.Priority == PriorityCritical {
			urgentIDs = append(urgentIDs, it.ID)
		}
	}
	if len(urgentIDs) > 0 {
		actions = append(actions, ActionRequired{
			Priority:        ActionPriorityUrgent,
			Reason:          fmt.Sprintf("%d critical detections need immediate review", len(urgentIDs)),
			WorkItemIDs:     urgentIDs,
			SuggestedAction: ActionManualReview,
		})
	}

	var deadlineIDs []string
	var earliest *time.Time
	for _, it := range items {
		if it.ResponseDeadline == nil {
			continue
		}
		h := it.ResponseDeadline.Sub(now).Hours()
		if h <= 0 || h >= deadlineHorizonHours {
			continue
		}
		deadlineIDs = append(deadlineIDs, it.ID)
		if earliest == nil || it.ResponseDeadline.Before(*earliest) {
			d := *it.ResponseDeadline
			earliest = &d
		}
	}
	if len(deadlineIDs) > 0 {
		actions = append(actions, ActionRequired{
			Priority:        ActionPriorityHigh,
			Reason:          fmt.Sprintf("%d items expect a response within 24 hours", len(deadlineIDs)),
			WorkItemIDs:     deadlineIDs,
			SuggestedAction: ActionManualReview,
			Deadline:        earliest,
		})
	}

	// The manual-review band the triage rules leave untouched.
	var reviewIDs []string
	for _, it := range items {
		if it.Lane != LaneNewDetection || it.Confidence == nil {
			continue
		}
		if c := *it.Confidence; c >= reviewBandFloor && c < highConfidenceCutoff {
			reviewIDs = append(reviewIDs, it.ID)
		}
	}
	if len(reviewIDs) > 0 {
		actions = append(actions, ActionRequired{
			Priority:        ActionPriorityMedium,
			Reason:          fmt.Sprintf("%d detections await manual review", len(reviewIDs)),
			WorkItemIDs:     reviewIDs,
			SuggestedAction: ActionManualReview,
		})
	}

	// Top groupings by confidence, re-sorted locally so the ranking holds
	// regardless of input order.
	top := make([]SmartGrouping, len(groupings))
	copy(top, groupings)
	sortGroupings(top)
	if len(top) > maxGroupingActions {
		top = top[:maxGroupingActions]
	}
	for _, g := range top {
		actions = append(actions, ActionRequired{
			Priority:        ActionPriorityLow,
			Reason:          g.Reason,
			WorkItemIDs:     g.WorkItemIDs,
			SuggestedAction: g.SuggestedAction,
		})
	}

	return actions
}
