package triage

import "time"

// Lane identifies where a work item sits in the enforcement pipeline.
type Lane string

const (
	// LaneNewDetection means found by the detection pipeline, not yet triaged
	LaneNewDetection Lane = "new_detection"

	// LaneInProgress means enforcement is underway
	LaneInProgress Lane = "in_progress"

	// LaneAwaitingResponse means a notice was sent and the platform has not answered
	LaneAwaitingResponse Lane = "awaiting_response"

	// LaneCompleted means resolved, approved takedown or rejected detection
	LaneCompleted Lane = "completed"
)

// Valid reports whether l is a known lane.
func (l Lane) Valid() bool {
	switch l {
	case LaneNewDetection, LaneInProgress, LaneAwaitingResponse, LaneCompleted:
		return true
	}
	return false
}

// CanTransition reports whether moving from l to next is a legal lane change.
// Staying in place is always legal. Completed is terminal.
func (l Lane) CanTransition(next Lane) bool {
	if l == next {
		return true
	}
	switch l {
	case LaneNewDetection:
		return next == LaneInProgress || next == LaneCompleted
	case LaneInProgress:
		return next == LaneAwaitingResponse || next == LaneCompleted
	case LaneAwaitingResponse:
		return next == LaneInProgress || next == LaneCompleted
	}
	return false
}

// Priority is the reviewer-facing urgency of a single work item.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ContentType classifies the detected content.
type ContentType string

const (
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentText  ContentType = "text"
)

// Action is a suggested next step attached to items, groupings, and action
// list entries. Advisory only; nothing downstream executes it automatically.
type Action string

const (
	ActionAutoApprove   Action = "auto_approve"
	ActionAutoReject    Action = "auto_reject"
	ActionManualReview  Action = "manual_review"
	ActionBatchTakedown Action = "batch_takedown"
	ActionBatchReview   Action = "batch_review"
	ActionBatchProcess  Action = "batch_process"
)

// Metadata carries detection attributes the engine groups and drafts on.
type Metadata struct {
	ContentType ContentType `json:"content_type,omitempty"`
	Similarity  *float64    `json:"similarity,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
}

// WorkItem is one detected piece of potentially infringing content moving
// through the pipeline. The engine mutates only Lane, Priority, and
// SuggestedAction; identity and detection facts are immutable after intake.
type WorkItem struct {
	ID               string     `json:"id"`
	Fingerprint      string     `json:"fingerprint,omitempty"`
	Lane             Lane       `json:"lane"`
	Platform         string     `json:"platform"`
	ProfileName      string     `json:"profile_name"`
	Confidence       *float64   `json:"confidence,omitempty"`
	Priority         Priority   `json:"priority"`
	SuggestedAction  Action     `json:"suggested_action,omitempty"`
	DetectedAt       time.Time  `json:"detected_at"`
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`
	Metadata         Metadata   `json:"metadata"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// MalformedReason reports why the item cannot be scored, or "" when it can.
func (w WorkItem) MalformedReason() string {
	if w.Confidence == nil {
		return "missing confidence"
	}
	if *w.Confidence < 0 || *w.Confidence > 100 {
		return "confidence out of range"
	}
	if w.DetectedAt.IsZero() {
		return "missing detected_at"
	}
	return ""
}

// Clone returns a deep copy, detaching the pointer fields so callers can
// mutate the copy without aliasing store state.
func (w WorkItem) Clone() WorkItem {
	c := w
	if w.Confidence != nil {
		v := *w.Confidence
		c.Confidence = &v
	}
	if w.ResponseDeadline != nil {
		t := *w.ResponseDeadline
		c.ResponseDeadline = &t
	}
	if w.Metadata.Similarity != nil {
		s := *w.Metadata.Similarity
		c.Metadata.Similarity = &s
	}
	return c
}

// SkippedItem records a work item the engine refused to score, with the
// reason surfaced for diagnostics.
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// CommonAttributes are the shared facts of a grouping's members. Similarity
// is the mean over members that define one.
type CommonAttributes struct {
	Platform    string      `json:"platform,omitempty"`
	ProfileName string      `json:"profile_name,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
	Similarity  *float64    `json:"similarity,omitempty"`
}

// SmartGrouping is a proposed batch of related work items. Groupings are
// recomputed every pass and never persisted.
type SmartGrouping struct {
	ID               string           `json:"id"`
	Reason           string           `json:"reason"`
	Confidence       float64          `json:"confidence"`
	WorkItemIDs      []string         `json:"work_item_ids"`
	SuggestedAction  Action           `json:"suggested_action"`
	CommonAttributes CommonAttributes `json:"common_attributes"`
}

// ActionPriority ranks entries on the aggregated action list. It is distinct
// from work item Priority: the top tier is urgent, not critical.
type ActionPriority string

const (
	ActionPriorityUrgent ActionPriority = "urgent"
	ActionPriorityHigh   ActionPriority = "high"
	ActionPriorityMedium ActionPriority = "medium"
	ActionPriorityLow    ActionPriority = "low"
)

// ActionRequired is one entry on the prioritized action list handed to
// reviewers. Transient, recomputed on demand.
type ActionRequired struct {
	Priority        ActionPriority `json:"priority"`
	Reason          string         `json:"reason"`
	WorkItemIDs     []string       `json:"work_item_ids"`
	SuggestedAction Action         `json:"suggested_action"`
	Deadline        *time.Time     `json:"deadline,omitempty"`
}

// Detection is the intake payload from the detection pipeline, before an ID
// and lane are assigned. Priority is an optional hint from the pipeline;
// absent means medium.
type Detection struct {
	Fingerprint      string      `json:"fingerprint"`
	Platform         string      `json:"platform"`
	ProfileName      string      `json:"profile_name"`
	Confidence       *float64    `json:"confidence,omitempty"`
	Priority         Priority    `json:"priority,omitempty"`
	DetectedAt       time.Time   `json:"detected_at"`
	ContentType      ContentType `json:"content_type,omitempty"`
	Similarity       *float64    `json:"similarity,omitempty"`
	SourceURL        string      `json:"source_url,omitempty"`
	ResponseDeadline *time.Time  `json:"response_deadline,omitempty"`
}

// FeedbackAction is a human reviewer's verdict on a work item.
type FeedbackAction string

const (
	FeedbackApprove FeedbackAction = "approve"
	FeedbackReject  FeedbackAction = "reject"
)

// Valid reports whether f is a known feedback action.
func (f FeedbackAction) Valid() bool {
	return f == FeedbackApprove || f == FeedbackReject
}
