package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/aegis/internal/triage")

// Per-item triage outcomes, used as hook/metric labels.
const (
	OutcomeApproved  = "auto_approved"
	OutcomeRejected  = "auto_rejected"
	OutcomeEscalated = "escalated"
	OutcomeUntouched = "untouched"
)

// EngineHooks are optional observation callbacks invoked synchronously while
// the engine and learner work. Nil members are skipped. They exist to bridge
// metrics without coupling the decision logic to a registry.
type EngineHooks struct {
	OnItemTriaged       func(outcome string)
	OnItemSkipped       func(reason string)
	OnGrouping          func(strategy string)
	OnPass              func(e *PassEvent)
	OnThresholdAdjusted func(threshold string, value float64)
}

// PassEvent summarizes one completed triage pass.
type PassEvent struct {
	Items     int
	Approved  int
	Rejected  int
	Escalated int
	Skipped   int
	Duration  float64
}

// TriageResult is the outcome of one triage pass. Items holds the full list
// in input order; Changed is the subset whose lane, priority, or suggested
// action moved and therefore needs persisting.
type TriageResult struct {
	Items   []WorkItem
	Changed []WorkItem
	Skipped []SkippedItem
}

// Engine applies automation policy to work item snapshots. All operations
// are synchronous call-and-return over the arguments; the engine keeps no
// state between calls beyond its injected clock.
type Engine struct {
	logger log.Logger
	hooks  EngineHooks
	now    func() time.Time
}

// NewEngine creates an engine. The clock defaults to time.Now and is
// overridden in tests.
func NewEngine(logger log.Logger, hooks EngineHooks) *Engine {
	return &Engine{
		logger: logger,
		hooks:  hooks,
		now:    time.Now,
	}
}

// Triage re-evaluates every item's lane and priority against cfg and elapsed
// time. Pure given items, cfg, and the clock: running it twice over its own
// output yields no further changes. Malformed items pass through untouched
// and are reported in Skipped; a bad item never aborts the batch.
func (e *Engine) Triage(ctx context.Context, items []WorkItem, cfg AutomationConfig) *TriageResult {
	start := time.Now()
	now := e.now()
	ctx, span := tracer.Start(ctx, "triage.pass", trace.WithAttributes(
		attribute.Int("aegis.pass.items", len(items)),
	))
	defer span.End()

	res := &TriageResult{Items: make([]WorkItem, 0, len(items))}
	var approved, rejected, escalated int

	for _, item := range items {
		out := item.Clone()

		if reason := item.MalformedReason(); reason != "" {
			res.Items = append(res.Items, out)
			res.Skipped = append(res.Skipped, SkippedItem{ID: item.ID, Reason: reason})
			if e.hooks.OnItemSkipped != nil {
				e.hooks.OnItemSkipped(reason)
			}
			e.logger.Warn(ctx, "work item skipped", "work_item_id", item.ID, "reason", reason)
			continue
		}

		outcome := OutcomeUntouched
		conf := *out.Confidence

		// Lane axis: first match wins.
		switch {
		case out.Lane == LaneNewDetection && conf >= cfg.effectiveApprove(out.Platform):
			out.Lane = LaneInProgress
			out.SuggestedAction = ActionAutoApprove
			outcome = OutcomeApproved
			approved++
		case out.Lane == LaneNewDetection && conf < cfg.effectiveReject(out.Platform):
			out.Lane = LaneCompleted
			out.SuggestedAction = ActionAutoReject
			outcome = OutcomeRejected
			rejected++
		}

		// Priority axis, independent of the lane rules: stalled items are
		// force-escalated once past the response window.
		if out.Lane == LaneAwaitingResponse {
			elapsed := now.Sub(out.DetectedAt).Hours()
			if elapsed > cfg.escalationWindow(out.Platform) {
				out.Priority = PriorityCritical
				out.SuggestedAction = ActionManualReview
				outcome = OutcomeEscalated
				escalated++
			}
		}

		if out.Lane != item.Lane || out.Priority != item.Priority || out.SuggestedAction != item.SuggestedAction {
			res.Changed = append(res.Changed, out)
		}
		if e.hooks.OnItemTriaged != nil {
			e.hooks.OnItemTriaged(outcome)
		}
		res.Items = append(res.Items, out)
	}

	duration := time.Since(start).Seconds()
	span.SetAttributes(
		attribute.Int("aegis.pass.approved", approved),
		attribute.Int("aegis.pass.rejected", rejected),
		attribute.Int("aegis.pass.escalated", escalated),
		attribute.Int("aegis.pass.skipped", len(res.Skipped)),
	)
	e.logger.Info(ctx, "triage pass complete",
		"items", len(items),
		"approved", approved,
		"rejected", rejected,
		"escalated", escalated,
		"skipped", len(res.Skipped),
		"changed", len(res.Changed),
		"duration", duration,
	)

	if e.hooks.OnPass != nil {
		e.hooks.OnPass(&PassEvent{
			Items:     len(items),
			Approved:  approved,
			Rejected:  rejected,
			Escalated: escalated,
			Skipped:   len(res.Skipped),
			Duration:  duration,
		})
	}
	return res
}
