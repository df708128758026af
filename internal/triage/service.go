package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// Notifier delivers pass digests to an external channel. Implementations
// must be safe for concurrent use; a nil Notifier disables delivery.
type Notifier interface {
	Notify(ctx context.Context, pr *PassResult) error
}

// IngestResult reports how a detection batch was absorbed.
type IngestResult struct {
	Accepted []string      `json:"accepted"`
	Skipped  []SkippedItem `json:"skipped,omitempty"`
}

// PassResult is the outcome of one full pipeline pass: triage, grouping,
// aggregation, digest.
type PassResult struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  float64          `json:"duration_seconds"`
	Items     int              `json:"items"`
	Changed   int              `json:"changed"`
	Skipped   []SkippedItem    `json:"skipped,omitempty"`
	Groupings []SmartGrouping  `json:"groupings"`
	Actions   []ActionRequired `json:"actions"`
	Digest    string           `json:"digest"`
}

// Service is the business boundary for triage operations: intake, passes,
// reads, feedback, and policy administration.
type Service struct {
	store    Store
	engine   *Engine
	learner  *Learner
	policy   *ConfigStore
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
}

// NewService creates a triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, learner *Learner, policy *ConfigStore, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		learner:  learner,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// InitConfig loads the persisted automation config into the live policy
// store, falling back to seed when none is persisted yet. The fallback is
// persisted so the next boot finds it.
func (s *Service) InitConfig(ctx context.Context, seed AutomationConfig) error {
	stored, ok, err := s.store.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ok {
		s.policy.Replace(*stored)
		s.logger.Info(ctx, "automation config loaded from store")
		return nil
	}
	applied := s.policy.Replace(seed)
	if err := s.store.SaveConfig(ctx, &applied); err != nil {
		return fmt.Errorf("persist seed config: %w", err)
	}
	s.logger.Info(ctx, "automation config seeded",
		"auto_approve", applied.AutoApproveThreshold,
		"auto_reject", applied.AutoRejectThreshold,
		"platform_rules", len(applied.PlatformRules),
	)
	return nil
}

// Ingest validates a detection batch, assigns IDs, and stores the accepted
// detections as new work items. Invalid or duplicate detections are skipped
// with reasons; one bad detection never rejects the batch.
func (s *Service) Ingest(ctx context.Context, detections []Detection) (*IngestResult, error) {
	res := &IngestResult{}
	now := time.Now()

	var items []WorkItem
	for i, d := range detections {
		if reason := s.screenDetection(ctx, d); reason != "" {
			label := d.Fingerprint
			if label == "" {
				label = fmt.Sprintf("detection[%d]", i)
			}
			res.Skipped = append(res.Skipped, SkippedItem{ID: label, Reason: reason})
			outcome := "invalid"
			if reason == "duplicate" {
				outcome = "duplicate"
			}
			if s.metrics != nil {
				s.metrics.IngestsTotal.WithLabelValues(outcome).Inc()
			}
			continue
		}

		item := WorkItem{
			ID:               ulid.Make().String(),
			Fingerprint:      d.Fingerprint,
			Lane:             LaneNewDetection,
			Platform:         d.Platform,
			ProfileName:      d.ProfileName,
			Confidence:       d.Confidence,
			Priority:         d.Priority,
			DetectedAt:       d.DetectedAt,
			ResponseDeadline: d.ResponseDeadline,
			Metadata: Metadata{
				ContentType: d.ContentType,
				Similarity:  d.Similarity,
				SourceURL:   d.SourceURL,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if item.Priority == "" {
			item.Priority = PriorityMedium
		}
		items = append(items, item)
		res.Accepted = append(res.Accepted, item.ID)
		if s.metrics != nil {
			s.metrics.IngestsTotal.WithLabelValues("accepted").Inc()
		}
	}

	if len(items) > 0 {
		if err := s.store.PutWorkItems(ctx, items); err != nil {
			return nil, fmt.Errorf("store detections: %w", err)
		}
	}

	s.logger.Info(ctx, "detections ingested",
		"received", len(detections),
		"accepted", len(res.Accepted),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// screenDetection returns a skip reason for d, or "" when it is acceptable.
func (s *Service) screenDetection(ctx context.Context, d Detection) string {
	switch {
	case d.Platform == "":
		return "missing platform"
	case d.ProfileName == "":
		return "missing profile_name"
	case d.DetectedAt.IsZero():
		return "missing detected_at"
	case d.Confidence == nil:
		return "missing confidence"
	case *d.Confidence < 0 || *d.Confidence > 100:
		return "confidence out of range"
	case d.ContentType != "" &&
		d.ContentType != ContentImage && d.ContentType != ContentVideo &&
		d.ContentType != ContentAudio && d.ContentType != ContentText:
		return "invalid content_type"
	case d.Priority != "" && !d.Priority.Valid():
		return "invalid priority"
	}

	if d.Fingerprint == "" {
		return ""
	}
	existing, ok, err := s.store.GetWorkItemByFingerprint(ctx, d.Fingerprint)
	if err != nil {
		s.logger.Error(ctx, err, "fingerprint lookup failed", "fingerprint", d.Fingerprint)
		return ""
	}
	// Completed items may be re-detected; anything still open is a dup.
	if ok && existing.Lane != LaneCompleted {
		return "duplicate"
	}
	return ""
}

// RunPass executes a full pipeline pass: triage over the current snapshot,
// persist what moved, propose groupings, aggregate the action list, and
// render the digest. Digest delivery happens asynchronously.
func (s *Service) RunPass(ctx context.Context) (*PassResult, error) {
	started := time.Now()

	items, err := s.store.ListWorkItems(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	cfg := s.policy.Snapshot()

	tr := s.engine.Triage(ctx, items, cfg)
	if len(tr.Changed) > 0 {
		now := time.Now()
		for i := range tr.Changed {
			tr.Changed[i].UpdatedAt = now
		}
		if err := s.store.PutWorkItems(ctx, tr.Changed); err != nil {
			return nil, fmt.Errorf("persist triaged items: %w", err)
		}
	}

	groupings := s.engine.ProposeGroupings(ctx, tr.Items, cfg)
	actions := s.engine.Aggregate(tr.Items, groupings)

	pr := &PassResult{
		ID:        ulid.Make().String(),
		StartedAt: started,
		Duration:  time.Since(started).Seconds(),
		Items:     len(tr.Items),
		Changed:   len(tr.Changed),
		Skipped:   tr.Skipped,
		Groupings: groupings,
		Actions:   actions,
		Digest:    Summarize(actions),
	}

	if s.metrics != nil {
		for _, a := range actions {
			s.metrics.ActionsEmitted.WithLabelValues(string(a.Priority)).Inc()
		}
	}

	// Deliver the digest off the request path; pass results do not wait on
	// the notification channel.
	if s.notifier != nil {
		go s.deliverDigest(context.WithoutCancel(ctx), pr)
	}
	return pr, nil
}

func (s *Service) deliverDigest(ctx context.Context, pr *PassResult) {
	if err := s.notifier.Notify(ctx, pr); err != nil {
		s.logger.Error(ctx, err, "digest notification failed", "pass_id", pr.ID)
		if s.metrics != nil {
			s.metrics.DigestsSent.WithLabelValues("error").Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.DigestsSent.WithLabelValues("ok").Inc()
	}
}

// Actions computes the current ranked action list without persisting
// anything: triage runs in memory over the stored snapshot, then groupings
// and aggregation run over its output.
func (s *Service) Actions(ctx context.Context) ([]ActionRequired, error) {
	items, err := s.store.ListWorkItems(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	cfg := s.policy.Snapshot()
	tr := s.engine.Triage(ctx, items, cfg)
	groupings := s.engine.ProposeGroupings(ctx, tr.Items, cfg)
	return s.engine.Aggregate(tr.Items, groupings), nil
}

// Digest renders the current action list as digest text, read-only.
func (s *Service) Digest(ctx context.Context) (string, error) {
	actions, err := s.Actions(ctx)
	if err != nil {
		return "", err
	}
	return Summarize(actions), nil
}

// WorkItems lists stored work items, optionally filtered by lane.
func (s *Service) WorkItems(ctx context.Context, lane Lane) ([]WorkItem, error) {
	return s.store.ListWorkItems(ctx, lane)
}

// WorkItem retrieves one work item by ID.
func (s *Service) WorkItem(ctx context.Context, id string) (*WorkItem, bool, error) {
	return s.store.GetWorkItem(ctx, id)
}

// RecordFeedback applies a human verdict to a work item: approve moves it
// into enforcement, reject closes it. The verdict then feeds the adaptive
// learner and the (possibly adjusted) config is persisted. Feedback on a
// completed item only feeds the learner.
func (s *Service) RecordFeedback(ctx context.Context, id string, action FeedbackAction) (*WorkItem, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown feedback action %q", action)
	}

	item, ok, err := s.store.GetWorkItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("work item %s: %w", id, ErrNotFound)
	}

	next := item.Lane
	switch action {
	case FeedbackApprove:
		if item.Lane == LaneNewDetection || item.Lane == LaneAwaitingResponse {
			next = LaneInProgress
		}
	case FeedbackReject:
		if item.Lane != LaneCompleted {
			next = LaneCompleted
		}
	}
	if next != item.Lane {
		if !item.Lane.CanTransition(next) {
			return nil, fmt.Errorf("lane %s cannot move to %s", item.Lane, next)
		}
		item.Lane = next
		item.UpdatedAt = time.Now()
		if err := s.store.PutWorkItem(ctx, item); err != nil {
			return nil, fmt.Errorf("persist feedback: %w", err)
		}
	}

	s.learner.Record(ctx, *item, action)
	if err := s.persistConfig(ctx); err != nil {
		// The in-memory thresholds are already adjusted; losing the write
		// costs at most the adjustment on next boot.
		s.logger.Error(ctx, err, "persist config after feedback", "work_item_id", id)
	}

	if s.metrics != nil {
		s.metrics.FeedbackTotal.WithLabelValues(string(action)).Inc()
	}
	s.logger.Info(ctx, "feedback recorded",
		"work_item_id", id,
		"action", string(action),
		"lane", string(item.Lane),
	)
	return item, nil
}

// GetConfig returns the live automation config snapshot.
func (s *Service) GetConfig(_ context.Context) AutomationConfig {
	return s.policy.Snapshot()
}

// UpdateConfig replaces the automation config document and persists it.
func (s *Service) UpdateConfig(ctx context.Context, cfg AutomationConfig) (AutomationConfig, error) {
	applied := s.policy.Replace(cfg)
	if err := s.store.SaveConfig(ctx, &applied); err != nil {
		return AutomationConfig{}, fmt.Errorf("persist config: %w", err)
	}
	s.logger.Info(ctx, "automation config updated",
		"auto_approve", applied.AutoApproveThreshold,
		"auto_reject", applied.AutoRejectThreshold,
		"adaptive", applied.AdaptiveThresholds,
		"platform_rules", len(applied.PlatformRules),
	)
	return applied, nil
}

func (s *Service) persistConfig(ctx context.Context) error {
	cfg := s.policy.Snapshot()
	return s.store.SaveConfig(ctx, &cfg)
}
