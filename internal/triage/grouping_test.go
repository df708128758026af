package triage

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// spreadItem returns an item that will not cluster with others by accident:
// unique profile, detection time offset far outside the proximity window.
func spreadItem(id string, conf float64, offset int) WorkItem {
	it := testItem(id, LaneNewDetection, conf)
	it.ProfileName = fmt.Sprintf("creator_%s", id)
	it.DetectedAt = testNow.Add(-time.Duration(offset) * 3 * time.Hour)
	return it
}

func TestProposeGroupings_ByPlatform(t *testing.T) {
	t.Parallel()

	lowConf := spreadItem("ig-low", 79, 3)
	items := []WorkItem{
		spreadItem("ig-1", 95, 0),
		spreadItem("ig-2", 88, 1),
		spreadItem("ig-3", 85, 2),
		lowConf,
		spreadItem("tk-1", 90, 4),
		spreadItem("tk-2", 90, 5),
	}
	items[4].Platform = "tiktok"
	items[5].Platform = "tiktok"

	e := newTestEngine(EngineHooks{})
	groups := e.ProposeGroupings(context.Background(), items, DefaultConfig())

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1: %+v", len(groups), groups)
	}
	g := groups[0]
	if g.Confidence != 95 {
		t.Errorf("confidence = %v, want 95", g.Confidence)
	}
	if g.SuggestedAction != ActionBatchTakedown {
		t.Errorf("suggested action = %s, want %s", g.SuggestedAction, ActionBatchTakedown)
	}
	if g.CommonAttributes.Platform != "instagram" {
		t.Errorf("platform = %q, want instagram", g.CommonAttributes.Platform)
	}
	if !strings.Contains(g.Reason, "3 high-confidence detections on instagram") {
		t.Errorf("reason = %q, want platform count", g.Reason)
	}
	want := []string{"ig-1", "ig-2", "ig-3"}
	if !reflect.DeepEqual(g.WorkItemIDs, want) {
		t.Errorf("members = %v, want %v", g.WorkItemIDs, want)
	}
}

func TestProposeGroupings_ByProfile(t *testing.T) {
	t.Parallel()

	mk := func(id, platform string, ct ContentType, offset int) WorkItem {
		it := testItem(id, LaneNewDetection, 65)
		it.Platform = platform
		it.Metadata.ContentType = ct
		it.DetectedAt = testNow.Add(-time.Duration(offset) * 3 * time.Hour)
		return it
	}

	e := newTestEngine(EngineHooks{})
	groups := e.ProposeGroupings(context.Background(), []WorkItem{
		mk("wi-1", "instagram", ContentImage, 0),
		mk("wi-2", "tiktok", ContentImage, 1),
		mk("wi-3", "youtube", ContentVideo, 2),
	}, DefaultConfig())

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1: %+v", len(groups), groups)
	}
	g := groups[0]
	if g.Confidence != 90 {
		t.Errorf("confidence = %v, want 90", g.Confidence)
	}
	if g.SuggestedAction != ActionBatchReview {
		t.Errorf("suggested action = %s, want %s", g.SuggestedAction, ActionBatchReview)
	}
	if g.CommonAttributes.ProfileName != "creator_a" {
		t.Errorf("profile = %q, want creator_a", g.CommonAttributes.ProfileName)
	}
	if g.CommonAttributes.ContentType != ContentImage {
		t.Errorf("content type = %s, want %s (dominant)", g.CommonAttributes.ContentType, ContentImage)
	}
	if !strings.Contains(g.Reason, "3 detections targeting profile creator_a") {
		t.Errorf("reason = %q, want profile count", g.Reason)
	}
}

func TestProposeGroupings_ByTimeProximity(t *testing.T) {
	t.Parallel()

	mk := func(id string, offset time.Duration) WorkItem {
		it := spreadItem(id, 65, 0)
		it.DetectedAt = testNow.Add(-12*time.Hour + offset)
		return it
	}

	e := newTestEngine(EngineHooks{})
	groups := e.ProposeGroupings(context.Background(), []WorkItem{
		// Out of order on purpose; the strategy sorts by detection time.
		mk("wi-c", 90*time.Minute),
		mk("wi-a", 0),
		mk("wi-b", 30*time.Minute),
		mk("wi-far", 8*time.Hour),
	}, DefaultConfig())

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1: %+v", len(groups), groups)
	}
	g := groups[0]
	if g.Confidence != 85 {
		t.Errorf("confidence = %v, want 85", g.Confidence)
	}
	if g.SuggestedAction != ActionBatchProcess {
		t.Errorf("suggested action = %s, want %s", g.SuggestedAction, ActionBatchProcess)
	}
	want := []string{"wi-a", "wi-b", "wi-c"}
	if !reflect.DeepEqual(g.WorkItemIDs, want) {
		t.Errorf("members = %v, want chronological %v", g.WorkItemIDs, want)
	}
	if !strings.Contains(g.Reason, "within a 2-hour window") {
		t.Errorf("reason = %q, want window mention", g.Reason)
	}
}

func TestProposeGroupings_TimeWindowIsInclusive(t *testing.T) {
	t.Parallel()

	mk := func(id string, offset time.Duration) WorkItem {
		it := spreadItem(id, 65, 0)
		it.DetectedAt = testNow.Add(-12*time.Hour + offset)
		return it
	}

	e := newTestEngine(EngineHooks{})

	// Gaps of exactly two hours keep the chain alive.
	groups := e.ProposeGroupings(context.Background(), []WorkItem{
		mk("wi-a", 0),
		mk("wi-b", 2*time.Hour),
		mk("wi-c", 4*time.Hour),
	}, DefaultConfig())
	if len(groups) != 1 || len(groups[0].WorkItemIDs) != 3 {
		t.Errorf("groups = %+v, want one chain of 3", groups)
	}

	// One minute past the window breaks it.
	groups = e.ProposeGroupings(context.Background(), []WorkItem{
		mk("wi-a", 0),
		mk("wi-b", 2*time.Hour),
		mk("wi-c", 4*time.Hour+time.Minute),
	}, DefaultConfig())
	if len(groups) != 0 {
		t.Errorf("groups = %+v, want none (broken chain leaves no group of 3)", groups)
	}
}

func TestProposeGroupings_BySimilarity(t *testing.T) {
	t.Parallel()

	mk := func(id string, sim *float64, offset int) WorkItem {
		it := spreadItem(id, 65, offset)
		it.Metadata.Similarity = sim
		return it
	}

	e := newTestEngine(EngineHooks{})
	groups := e.ProposeGroupings(context.Background(), []WorkItem{
		mk("wi-seed", fptr(80), 0),
		mk("wi-near", fptr(85), 1),
		mk("wi-edge", fptr(88), 2),
		mk("wi-far", fptr(95), 3),
		mk("wi-none", nil, 4),
	}, DefaultConfig())

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1: %+v", len(groups), groups)
	}
	g := groups[0]
	if g.Confidence != 92 {
		t.Errorf("confidence = %v, want 92", g.Confidence)
	}
	if g.SuggestedAction != ActionBatchTakedown {
		t.Errorf("suggested action = %s, want %s", g.SuggestedAction, ActionBatchTakedown)
	}
	want := []string{"wi-seed", "wi-near", "wi-edge"}
	if !reflect.DeepEqual(g.WorkItemIDs, want) {
		t.Errorf("members = %v, want %v", g.WorkItemIDs, want)
	}
	if !strings.Contains(g.Reason, "similarity near 80") {
		t.Errorf("reason = %q, want seed similarity", g.Reason)
	}
	wantMean := (80.0 + 85.0 + 88.0) / 3
	if g.CommonAttributes.Similarity == nil || *g.CommonAttributes.Similarity != wantMean {
		t.Errorf("similarity = %v, want %v", g.CommonAttributes.Similarity, wantMean)
	}
}

func TestProposeGroupings_MinGroupSize(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinGroupSize = 4

	items := []WorkItem{
		spreadItem("wi-1", 90, 0),
		spreadItem("wi-2", 90, 1),
		spreadItem("wi-3", 90, 2),
	}

	e := newTestEngine(EngineHooks{})
	if groups := e.ProposeGroupings(context.Background(), items, cfg); len(groups) != 0 {
		t.Errorf("groups = %+v, want none below min group size", groups)
	}

	cfg.MinGroupSize = 2
	groups := e.ProposeGroupings(context.Background(), items[:2], cfg)
	if len(groups) != 1 {
		t.Errorf("groups = %d, want 1 with min group size 2: %+v", len(groups), groups)
	}
}

func TestProposeGroupings_SortedByConfidence(t *testing.T) {
	t.Parallel()

	// Three items that cluster under every strategy at once.
	mk := func(id string, sim float64) WorkItem {
		it := testItem(id, LaneNewDetection, 90)
		it.Metadata.Similarity = fptr(sim)
		return it
	}
	items := []WorkItem{mk("wi-1", 90), mk("wi-2", 91), mk("wi-3", 92)}

	e := newTestEngine(EngineHooks{})
	groups := e.ProposeGroupings(context.Background(), items, DefaultConfig())

	if len(groups) != 4 {
		t.Fatalf("groups = %d, want one per strategy: %+v", len(groups), groups)
	}
	var confs []float64
	seen := make(map[string]bool)
	for _, g := range groups {
		confs = append(confs, g.Confidence)
		if g.ID == "" {
			t.Error("expected non-empty grouping ID")
		}
		if seen[g.ID] {
			t.Errorf("duplicate grouping ID %s", g.ID)
		}
		seen[g.ID] = true

		found := false
		for _, id := range g.WorkItemIDs {
			if id == "wi-1" {
				found = true
			}
		}
		if !found {
			t.Errorf("grouping %v missing wi-1; items may join several strategies", g.Reason)
		}
	}
	if !reflect.DeepEqual(confs, []float64{95, 92, 90, 85}) {
		t.Errorf("confidences = %v, want [95 92 90 85]", confs)
	}
}

func TestProposeGroupings_MalformedExcluded(t *testing.T) {
	t.Parallel()

	bad := testItem("wi-bad", LaneNewDetection, 0)
	bad.Confidence = nil
	items := []WorkItem{
		testItem("wi-1", LaneNewDetection, 65),
		testItem("wi-2", LaneNewDetection, 65),
		bad,
	}

	e := newTestEngine(EngineHooks{})
	if groups := e.ProposeGroupings(context.Background(), items, DefaultConfig()); len(groups) != 0 {
		t.Errorf("groups = %+v, want none (malformed item must not complete a group)", groups)
	}
}

func TestProposeGroupings_Empty(t *testing.T) {
	t.Parallel()

	e := newTestEngine(EngineHooks{})
	if groups := e.ProposeGroupings(context.Background(), nil, DefaultConfig()); len(groups) != 0 {
		t.Errorf("groups = %+v, want none", groups)
	}
}

func TestProposeGroupings_HookPerGrouping(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	strategies := map[string]int{}
	hooks := EngineHooks{
		OnGrouping: func(strategy string) {
			mu.Lock()
			defer mu.Unlock()
			strategies[strategy]++
		},
	}

	mk := func(id string, sim float64) WorkItem {
		it := testItem(id, LaneNewDetection, 90)
		it.Metadata.Similarity = fptr(sim)
		return it
	}

	e := newTestEngine(hooks)
	_ = e.ProposeGroupings(context.Background(), []WorkItem{mk("wi-1", 90), mk("wi-2", 91), mk("wi-3", 92)}, DefaultConfig())

	mu.Lock()
	defer mu.Unlock()
	want := map[string]int{
		StrategyPlatform:   1,
		StrategyProfile:    1,
		StrategyTime:       1,
		StrategySimilarity: 1,
	}
	if !reflect.DeepEqual(strategies, want) {
		t.Errorf("strategy hook counts = %v, want %v", strategies, want)
	}
}

func TestMeanSimilarity(t *testing.T) {
	t.Parallel()

	mk := func(sim *float64) WorkItem {
		return WorkItem{Metadata: Metadata{Similarity: sim}}
	}

	got := meanSimilarity([]WorkItem{mk(fptr(80)), mk(nil), mk(fptr(90))})
	if got == nil || *got != 85 {
		t.Errorf("mean = %v, want 85 (unscored members excluded)", got)
	}
	if got := meanSimilarity([]WorkItem{mk(nil), mk(nil)}); got != nil {
		t.Errorf("mean = %v, want nil when no member has a score", got)
	}
}

func TestDominantContentType(t *testing.T) {
	t.Parallel()

	mk := func(ct ContentType) WorkItem {
		return WorkItem{Metadata: Metadata{ContentType: ct}}
	}

	got := dominantContentType([]WorkItem{mk(ContentVideo), mk(ContentImage), mk(ContentImage)})
	if got != ContentImage {
		t.Errorf("dominant = %s, want %s", got, ContentImage)
	}
	// Ties go to the first type encountered.
	got = dominantContentType([]WorkItem{mk(ContentVideo), mk(ContentImage)})
	if got != ContentVideo {
		t.Errorf("dominant = %s, want first-encountered %s on tie", got, ContentVideo)
	}
}
