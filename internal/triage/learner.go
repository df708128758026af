package triage

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"
)

// Learner tuning. The counter must leave the band before a threshold moves,
// and every move is one fixed step toward the floor or ceiling. These encode
// tuned production behavior.
const (
	learnerBand   = 5
	learnerStep   = 2
	approveFloor  = 70.0
	rejectCeiling = 50.0
)

// patternKey identifies one disagreement counter.
type patternKey struct {
	Platform    string
	ContentType ContentType
}

// Learner nudges automation thresholds from sustained human disagreement
// with the automated decisions. A single disagreement never moves policy:
// the signed counter for the item's (platform, content type) pattern has to
// cross the band first, and the floor/ceiling keep the reject threshold from
// ever reaching the approve threshold.
type Learner struct {
	cfg    *ConfigStore
	logger log.Logger
	hooks  EngineHooks

	mu       sync.Mutex
	counters map[patternKey]int
}

// NewLearner creates a learner that adjusts thresholds through cfg.
func NewLearner(cfg *ConfigStore, logger log.Logger, hooks EngineHooks) *Learner {
	return &Learner{
		cfg:      cfg,
		logger:   logger,
		hooks:    hooks,
		counters: make(map[patternKey]int),
	}
}

// Record consumes one human verdict on a work item. When adaptive thresholds
// are disabled it computes nothing. An approve on an item the automation
// would not have approved pushes the pattern counter up; sustained pushes
// lower the approve threshold by the step, floored. A reject on an item the
// automation would not have rejected pushes the counter down; sustained
// pushes raise the reject threshold, capped. The counter resets after an
// adjustment fires.
func (l *Learner) Record(ctx context.Context, item WorkItem, action FeedbackAction) {
	if !action.Valid() || item.Confidence == nil {
		return
	}
	conf := *item.Confidence
	key := patternKey{Platform: item.Platform, ContentType: item.Metadata.ContentType}

	var (
		adjusted string
		newValue float64
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cfg.Update(func(c *AutomationConfig) {
		if !c.AdaptiveThresholds {
			return
		}
		switch action {
		case FeedbackApprove:
			if conf >= c.AutoApproveThreshold {
				return
			}
			l.counters[key]++
			if l.counters[key] > learnerBand {
				c.AutoApproveThreshold = max(c.AutoApproveThreshold-learnerStep, approveFloor)
				l.counters[key] = 0
				adjusted, newValue = "auto_approve", c.AutoApproveThreshold
			}
		case FeedbackReject:
			if conf <= c.AutoRejectThreshold {
				return
			}
			l.counters[key]--
			if l.counters[key] < -learnerBand {
				c.AutoRejectThreshold = min(c.AutoRejectThreshold+learnerStep, rejectCeiling)
				l.counters[key] = 0
				adjusted, newValue = "auto_reject", c.AutoRejectThreshold
			}
		}
	})

	if adjusted == "" {
		return
	}
	l.logger.Info(ctx, "threshold adjusted",
		"threshold", adjusted,
		"value", newValue,
		"platform", key.Platform,
		"content_type", string(key.ContentType),
	)
	if l.hooks.OnThresholdAdjusted != nil {
		l.hooks.OnThresholdAdjusted(adjusted, newValue)
	}
}
