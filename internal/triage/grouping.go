package triage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Grouping strategy names, used as hook/metric labels.
const (
	StrategyPlatform   = "platform"
	StrategyProfile    = "profile"
	StrategyTime       = "time_proximity"
	StrategySimilarity = "similarity"
)

// Engine certainty assigned per strategy, plus the selection parameters the
// strategies run with. These encode tuned production behavior; change them
// together with the operator runbooks.
const (
	platformGroupConfidence   = 95
	profileGroupConfidence    = 90
	timeGroupConfidence       = 85
	similarityGroupConfidence = 92

	highConfidenceCutoff = 80.0
	timeProximityWindow  = 2 * time.Hour
	similarityTolerance  = 10.0
)

// ProposeGroupings discovers clusters of related work items and proposes a
// batch action for each. The four strategies run independently; an item may
// appear in groupings from more than one strategy. The result is sorted by
// confidence descending and every grouping has at least cfg.MinGroupSize
// members. Malformed items are not groupable.
func (e *Engine) ProposeGroupings(ctx context.Context, items []WorkItem, cfg AutomationConfig) []SmartGrouping {
	ctx, span := tracer.Start(ctx, "triage.groupings", trace.WithAttributes(
		attribute.Int("aegis.groupings.items", len(items)),
	))
	defer span.End()

	scorable := make([]WorkItem, 0, len(items))
	for _, it := range items {
		if it.MalformedReason() == "" {
			scorable = append(scorable, it)
		}
	}

	var groups []SmartGrouping
	for _, s := range []struct {
		name string
		run  func([]WorkItem, AutomationConfig) []SmartGrouping
	}{
		{StrategyPlatform, groupByPlatform},
		{StrategyProfile, groupByProfile},
		{StrategyTime, groupByTimeProximity},
		{StrategySimilarity, groupBySimilarity},
	} {
		gs := s.run(scorable, cfg)
		if e.hooks.OnGrouping != nil {
			for range gs {
				e.hooks.OnGrouping(s.name)
			}
		}
		groups = append(groups, gs...)
	}

	sortGroupings(groups)

	span.SetAttributes(attribute.Int("aegis.groupings.proposed", len(groups)))
	e.logger.Info(ctx, "groupings proposed", "items", len(scorable), "groupings", len(groups))
	return groups
}

// sortGroupings orders by confidence desc, then member count desc, then ID
// asc, so equal-confidence groupings keep a stable order.
func sortGroupings(groups []SmartGrouping) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Confidence != groups[j].Confidence {
			return groups[i].Confidence > groups[j].Confidence
		}
		if len(groups[i].WorkItemIDs) != len(groups[j].WorkItemIDs) {
			return len(groups[i].WorkItemIDs) > len(groups[j].WorkItemIDs)
		}
		return groups[i].ID < groups[j].ID
	})
}

// groupByPlatform clusters high-confidence items per platform for a single
// batch takedown.
func groupByPlatform(items []WorkItem, cfg AutomationConfig) []SmartGrouping {
	byPlatform := make(map[string][]WorkItem)
	for _, it := range items {
		if *it.Confidence >= highConfidenceCutoff {
			byPlatform[it.Platform] = append(byPlatform[it.Platform], it)
		}
	}

	var groups []SmartGrouping
	for _, platform := range sortedKeys(byPlatform) {
		members := byPlatform[platform]
		if len(members) < cfg.MinGroupSize {
			continue
		}
		groups = append(groups, SmartGrouping{
			ID:              ulid.Make().String(),
			Reason:          fmt.Sprintf("%d high-confidence detections on %s", len(members), platform),
			Confidence:      platformGroupConfidence,
			WorkItemIDs:     itemIDs(members),
			SuggestedAction: ActionBatchTakedown,
			CommonAttributes: CommonAttributes{
				Platform:   platform,
				Similarity: meanSimilarity(members),
			},
		})
	}
	return groups
}

// groupByProfile clusters items per protected profile for a batch review.
// The common content type is the most frequent one in the cluster, ties
// broken by first-encountered order.
func groupByProfile(items []WorkItem, cfg AutomationConfig) []SmartGrouping {
	byProfile := make(map[string][]WorkItem)
	for _, it := range items {
		byProfile[it.ProfileName] = append(byProfile[it.ProfileName], it)
	}

	var groups []SmartGrouping
	for _, profile := range sortedKeys(byProfile) {
		members := byProfile[profile]
		if len(members) < cfg.MinGroupSize {
			continue
		}
		groups = append(groups, SmartGrouping{
			ID:              ulid.Make().String(),
			Reason:          fmt.Sprintf("%d detections targeting profile %s", len(members), profile),
			Confidence:      profileGroupConfidence,
			WorkItemIDs:     itemIDs(members),
			SuggestedAction: ActionBatchReview,
			CommonAttributes: CommonAttributes{
				ProfileName: profile,
				ContentType: dominantContentType(members),
				Similarity:  meanSimilarity(members),
			},
		})
	}
	return groups
}

// groupByTimeProximity chains items detected within a rolling two-hour
// window of the previous member, closing the chain on the first larger gap.
func groupByTimeProximity(items []WorkItem, cfg AutomationConfig) []SmartGrouping {
	if len(items) == 0 {
		return nil
	}
	ordered := make([]WorkItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DetectedAt.Before(ordered[j].DetectedAt)
	})

	var groups []SmartGrouping
	flush := func(chain []WorkItem) {
		if len(chain) < cfg.MinGroupSize {
			return
		}
		groups = append(groups, SmartGrouping{
			ID:              ulid.Make().String(),
			Reason:          fmt.Sprintf("%d detections within a 2-hour window", len(chain)),
			Confidence:      timeGroupConfidence,
			WorkItemIDs:     itemIDs(chain),
			SuggestedAction: ActionBatchProcess,
			CommonAttributes: CommonAttributes{
				Similarity: meanSimilarity(chain),
			},
		})
	}

	chain := []WorkItem{ordered[0]}
	for _, it := range ordered[1:] {
		if it.DetectedAt.Sub(chain[len(chain)-1].DetectedAt) > timeProximityWindow {
			flush(chain)
			chain = nil
		}
		chain = append(chain, it)
	}
	flush(chain)
	return groups
}

// groupBySimilarity clusters items whose similarity scores sit within the
// tolerance of a seed item. The visited set is local to this strategy so a
// member joins at most one similarity grouping per invocation; the other
// strategies are unaffected.
func groupBySimilarity(items []WorkItem, cfg AutomationConfig) []SmartGrouping {
	visited := make(map[string]bool)

	var groups []SmartGrouping
	for _, seed := range items {
		if visited[seed.ID] || seed.Metadata.Similarity == nil {
			continue
		}
		seedSim := *seed.Metadata.Similarity

		members := []WorkItem{seed}
		for _, other := range items {
			if other.ID == seed.ID || visited[other.ID] || other.Metadata.Similarity == nil {
				continue
			}
			diff := *other.Metadata.Similarity - seedSim
			if diff < 0 {
				diff = -diff
			}
			if diff < similarityTolerance {
				members = append(members, other)
			}
		}
		if len(members) < cfg.MinGroupSize {
			continue
		}
		for _, m := range members {
			visited[m.ID] = true
		}
		groups = append(groups, SmartGrouping{
			ID:              ulid.Make().String(),
			Reason:          fmt.Sprintf("%d detections with similarity near %.0f", len(members), seedSim),
			Confidence:      similarityGroupConfidence,
			WorkItemIDs:     itemIDs(members),
			SuggestedAction: ActionBatchTakedown,
			CommonAttributes: CommonAttributes{
				Similarity: meanSimilarity(members),
			},
		})
	}
	return groups
}

func itemIDs(items []WorkItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// meanSimilarity averages the similarity of members that define one; members
// without a score are excluded from the average, not counted as zero. Nil
// when no member has a score.
func meanSimilarity(items []WorkItem) *float64 {
	var sum float64
	var n int
	for _, it := range items {
		if it.Metadata.Similarity != nil {
			sum += *it.Metadata.Similarity
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// dominantContentType returns the most frequent content type, ties broken by
// first-encountered order.
func dominantContentType(items []WorkItem) ContentType {
	counts := make(map[ContentType]int)
	var order []ContentType
	for _, it := range items {
		ct := it.Metadata.ContentType
		if _, seen := counts[ct]; !seen {
			order = append(order, ct)
		}
		counts[ct]++
	}
	best := order[0]
	for _, ct := range order[1:] {
		if counts[ct] > counts[best] {
			best = ct
		}
	}
	return best
}

// sortedKeys returns map keys in ascending order so grouping emission is
// deterministic across runs.
func sortedKeys(m map[string][]WorkItem) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
