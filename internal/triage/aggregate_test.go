package triage

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	e := newTestEngine(EngineHooks{})
	if got := e.Aggregate(nil, nil); len(got) != 0 {
		t.Errorf("actions = %+v, want empty", got)
	}

	// Items that hit no tier produce no entries either.
	quiet := []WorkItem{
		testItem("wi-approved", LaneInProgress, 95),
		testItem("wi-rejected", LaneCompleted, 20),
	}
	if got := e.Aggregate(quiet, nil); len(got) != 0 {
		t.Errorf("actions = %+v, want empty for quiet items", got)
	}
}

func TestAggregate_UrgentTier(t *testing.T) {
	t.Parallel()

	crit1 := testItem("wi-crit-1", LaneNewDetection, 70)
	crit1.Priority = PriorityCritical
	crit2 := testItem("wi-crit-2", LaneNewDetection, 55)
	crit2.Priority = PriorityCritical
	// Critical outside the intake lane is already being worked; not urgent.
	critWorked := testItem("wi-crit-worked", LaneInProgress, 70)
	critWorked.Priority = PriorityCritical

	e := newTestEngine(EngineHooks{})
	actions := e.Aggregate([]WorkItem{crit1, crit2, critWorked}, nil)

	var urgent *ActionRequired
	for i := range actions {
		if actions[i].Priority == ActionPriorityUrgent {
			urgent = &actions[i]
		}
	}
	if urgent == nil {
		t.Fatalf("actions = %+v, want an urgent entry", actions)
	}
	if !reflect.DeepEqual(urgent.WorkItemIDs, []string{"wi-crit-1", "wi-crit-2"}) {
		t.Errorf("urgent IDs = %v, want [wi-crit-1 wi-crit-2]", urgent.WorkItemIDs)
	}
	if !strings.Contains(urgent.Reason, "2 critical detections") {
		t.Errorf("reason = %q, want critical count", urgent.Reason)
	}
	if urgent.SuggestedAction != ActionManualReview {
		t.Errorf("suggested action = %s, want %s", urgent.SuggestedAction, ActionManualReview)
	}
}

func TestAggregate_DeadlineTier(t *testing.T) {
	t.Parallel()

	mk := func(id string, deadline *time.Time) WorkItem {
		it := testItem(id, LaneInProgress, 95)
		it.ResponseDeadline = deadline
		return it
	}
	at := func(d time.Duration) *time.Time {
		v := testNow.Add(d)
		return &v
	}

	e := newTestEngine(EngineHooks{})
	actions := e.Aggregate([]WorkItem{
		mk("wi-soon", at(5*time.Hour)),
		mk("wi-edge", at(23*time.Hour+59*time.Minute)),
		mk("wi-far", at(25*time.Hour)),
		mk("wi-past", at(-1*time.Hour)),
		mk("wi-none", nil),
	}, nil)

	if len(actions) != 1 {
		t.Fatalf("actions = %+v, want one deadline entry", actions)
	}
	got := actions[0]
	if got.Priority != ActionPriorityHigh {
		t.Errorf("priority = %s, want %s", got.Priority, ActionPriorityHigh)
	}
	if !reflect.DeepEqual(got.WorkItemIDs, []string{"wi-soon", "wi-edge"}) {
		t.Errorf("IDs = %v, want [wi-soon wi-edge]", got.WorkItemIDs)
	}
	if got.Deadline == nil || !got.Deadline.Equal(testNow.Add(5*time.Hour)) {
		t.Errorf("deadline = %v, want the earliest (%v)", got.Deadline, testNow.Add(5*time.Hour))
	}
	if !strings.Contains(got.Reason, "within 24 hours") {
		t.Errorf("reason = %q, want 24-hour mention", got.Reason)
	}
}

func TestAggregate_ReviewBandTier(t *testing.T) {
	t.Parallel()

	inProgress := testItem("wi-working", LaneInProgress, 70)

	e := newTestEngine(EngineHooks{})
	actions := e.Aggregate([]WorkItem{
		testItem("wi-floor", LaneNewDetection, 60),
		testItem("wi-top", LaneNewDetection, 79.9),
		testItem("wi-below", LaneNewDetection, 59.9),
		testItem("wi-above", LaneNewDetection, 80),
		inProgress,
	}, nil)

	if len(actions) != 1 {
		t.Fatalf("actions = %+v, want one review entry", actions)
	}
	got := actions[0]
	if got.Priority != ActionPriorityMedium {
		t.Errorf("priority = %s, want %s", got.Priority, ActionPriorityMedium)
	}
	if !reflect.DeepEqual(got.WorkItemIDs, []string{"wi-floor", "wi-top"}) {
		t.Errorf("IDs = %v, want [wi-floor wi-top]", got.WorkItemIDs)
	}
	if !strings.Contains(got.Reason, "await manual review") {
		t.Errorf("reason = %q, want review mention", got.Reason)
	}
}

func TestAggregate_GroupingsCappedAtThree(t *testing.T) {
	t.Parallel()

	mk := func(conf float64, reason string) SmartGrouping {
		return SmartGrouping{
			ID:              reason,
			Reason:          reason,
			Confidence:      conf,
			WorkItemIDs:     []string{"wi-1", "wi-2", "wi-3"},
			SuggestedAction: ActionBatchTakedown,
		}
	}

	// Deliberately unsorted; aggregation re-ranks before capping.
	groupings := []SmartGrouping{
		mk(85, "g-85"), mk(95, "g-95"), mk(90, "g-90"), mk(92, "g-92"), mk(88, "g-88"),
	}

	e := newTestEngine(EngineHooks{})
	actions := e.Aggregate(nil, groupings)

	if len(actions) != 3 {
		t.Fatalf("actions = %d, want 3", len(actions))
	}
	var reasons []string
	for _, a := range actions {
		if a.Priority != ActionPriorityLow {
			t.Errorf("priority = %s, want %s", a.Priority, ActionPriorityLow)
		}
		if a.SuggestedAction != ActionBatchTakedown {
			t.Errorf("suggested action = %s, want carried from grouping", a.SuggestedAction)
		}
		reasons = append(reasons, a.Reason)
	}
	if !reflect.DeepEqual(reasons, []string{"g-95", "g-92", "g-90"}) {
		t.Errorf("reasons = %v, want top three by confidence", reasons)
	}
}

func TestAggregate_TierOrder(t *testing.T) {
	t.Parallel()

	crit := testItem("wi-crit", LaneNewDetection, 55)
	crit.Priority = PriorityCritical
	deadline := testNow.Add(6 * time.Hour)
	due := testItem("wi-due", LaneInProgress, 95)
	due.ResponseDeadline = &deadline
	band := testItem("wi-band", LaneNewDetection, 70)

	grouping := SmartGrouping{
		ID: "g-1", Reason: "batch", Confidence: 95,
		WorkItemIDs: []string{"wi-a", "wi-b", "wi-c"}, SuggestedAction: ActionBatchTakedown,
	}

	e := newTestEngine(EngineHooks{})
	actions := e.Aggregate([]WorkItem{crit, due, band}, []SmartGrouping{grouping})

	var got []ActionPriority
	for _, a := range actions {
		got = append(got, a.Priority)
	}
	want := []ActionPriority{ActionPriorityUrgent, ActionPriorityHigh, ActionPriorityMedium, ActionPriorityLow}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tier order = %v, want %v", got, want)
	}
}

func TestAggregate_FullPass(t *testing.T) {
	t.Parallel()

	deadline := testNow.Add(6 * time.Hour)
	crit := testItem("wi-crit", LaneNewDetection, 70)
	crit.Priority = PriorityCritical
	due := testItem("wi-due", LaneAwaitingResponse, 70)
	due.ResponseDeadline = &deadline

	items := []WorkItem{
		testItem("wi-ap-1", LaneNewDetection, 95),
		testItem("wi-ap-2", LaneNewDetection, 92),
		testItem("wi-ap-3", LaneNewDetection, 96),
		testItem("wi-rj-1", LaneNewDetection, 10),
		testItem("wi-rj-2", LaneNewDetection, 35),
		testItem("wi-band-1", LaneNewDetection, 70),
		testItem("wi-band-2", LaneNewDetection, 65),
		crit,
		due,
	}

	e := newTestEngine(EngineHooks{})
	cfg := DefaultConfig()
	res := e.Triage(context.Background(), items, cfg)
	groupings := e.ProposeGroupings(context.Background(), res.Items, cfg)
	actions := e.Aggregate(res.Items, groupings)

	if len(res.Changed) != 5 {
		t.Fatalf("changed = %d, want 5 (3 approved + 2 rejected)", len(res.Changed))
	}

	var tiers []ActionPriority
	for _, a := range actions {
		tiers = append(tiers, a.Priority)
	}
	want := []ActionPriority{
		ActionPriorityUrgent, ActionPriorityHigh, ActionPriorityMedium,
		ActionPriorityLow, ActionPriorityLow, ActionPriorityLow,
	}
	if !reflect.DeepEqual(tiers, want) {
		t.Fatalf("tiers = %v, want %v", tiers, want)
	}

	if !reflect.DeepEqual(actions[0].WorkItemIDs, []string{"wi-crit"}) {
		t.Errorf("urgent IDs = %v, want [wi-crit]", actions[0].WorkItemIDs)
	}
	if !reflect.DeepEqual(actions[1].WorkItemIDs, []string{"wi-due"}) {
		t.Errorf("deadline IDs = %v, want [wi-due]", actions[1].WorkItemIDs)
	}
	// The critical item sits in the review band too; both entries carry it.
	if !reflect.DeepEqual(actions[2].WorkItemIDs, []string{"wi-band-1", "wi-band-2", "wi-crit"}) {
		t.Errorf("review IDs = %v, want the band plus the critical item", actions[2].WorkItemIDs)
	}
	// The approved items keep their confidence, so they drive the platform batch.
	if !strings.Contains(actions[3].Reason, "3 high-confidence detections on instagram") {
		t.Errorf("top grouping reason = %q, want the platform batch", actions[3].Reason)
	}
}
