package triage

import (
	"errors"
	"fmt"
	"sync"
)

// Default policy values applied when no persisted config exists.
const (
	DefaultAutoApproveThreshold = 90
	DefaultAutoRejectThreshold  = 40
	DefaultAutoEscalateHours    = 48
	DefaultMinGroupSize         = 3
)

// PlatformRule overrides global policy for a single platform. Zero-valued
// numeric fields mean "no override"; the global threshold applies.
type PlatformRule struct {
	AutoApproveThreshold float64 `json:"auto_approve_threshold,omitempty" yaml:"auto_approve_threshold,omitempty"`
	AutoRejectThreshold  float64 `json:"auto_reject_threshold,omitempty" yaml:"auto_reject_threshold,omitempty"`
	ResponseTimeoutHours float64 `json:"response_timeout_hours,omitempty" yaml:"response_timeout_hours,omitempty"`
	AutoEscalate         bool    `json:"auto_escalate,omitempty" yaml:"auto_escalate,omitempty"`
	PreferredTemplate    string  `json:"preferred_template,omitempty" yaml:"preferred_template,omitempty"`
}

// AutomationConfig is the policy document driving automated triage. It is
// mutated only by the Adaptive Learner and by administrator updates, always
// through a ConfigStore.
type AutomationConfig struct {
	AutoApproveThreshold float64                 `json:"auto_approve_threshold" yaml:"auto_approve_threshold"`
	AutoRejectThreshold  float64                 `json:"auto_reject_threshold" yaml:"auto_reject_threshold"`
	AutoEscalateHours    float64                 `json:"auto_escalate_hours" yaml:"auto_escalate_hours"`
	MinGroupSize         int                     `json:"min_group_size" yaml:"min_group_size"`
	AdaptiveThresholds   bool                    `json:"adaptive_thresholds" yaml:"adaptive_thresholds"`
	PlatformRules        map[string]PlatformRule `json:"platform_rules,omitempty" yaml:"platform_rules,omitempty"`
}

// DefaultConfig returns the stock policy: approve at 90, reject below 40,
// escalate after 48 hours, groups of 3, adaptive thresholds on.
func DefaultConfig() AutomationConfig {
	return AutomationConfig{
		AutoApproveThreshold: DefaultAutoApproveThreshold,
		AutoRejectThreshold:  DefaultAutoRejectThreshold,
		AutoEscalateHours:    DefaultAutoEscalateHours,
		MinGroupSize:         DefaultMinGroupSize,
		AdaptiveThresholds:   true,
	}
}

// Clone returns a deep copy, detaching the platform rule map.
func (c AutomationConfig) Clone() AutomationConfig {
	n := c
	if c.PlatformRules != nil {
		n.PlatformRules = make(map[string]PlatformRule, len(c.PlatformRules))
		for k, v := range c.PlatformRules {
			n.PlatformRules[k] = v
		}
	}
	return n
}

// Validate checks a config document submitted through the admin API.
// Internal reads normalize silently instead; this is the strict gate for
// explicit updates.
func (c AutomationConfig) Validate() error {
	var errs []error

	if c.AutoApproveThreshold < 0 || c.AutoApproveThreshold > 100 {
		errs = append(errs, fmt.Errorf("auto_approve_threshold %v out of range (must be 0..100)", c.AutoApproveThreshold))
	}
	if c.AutoRejectThreshold < 0 || c.AutoRejectThreshold > 100 {
		errs = append(errs, fmt.Errorf("auto_reject_threshold %v out of range (must be 0..100)", c.AutoRejectThreshold))
	}
	if c.AutoRejectThreshold >= c.AutoApproveThreshold {
		errs = append(errs, fmt.Errorf("auto_reject_threshold %v must be below auto_approve_threshold %v", c.AutoRejectThreshold, c.AutoApproveThreshold))
	}
	if c.AutoEscalateHours < 0 {
		errs = append(errs, fmt.Errorf("auto_escalate_hours %v must not be negative", c.AutoEscalateHours))
	}
	if c.MinGroupSize < 1 {
		errs = append(errs, fmt.Errorf("min_group_size %d must be at least 1", c.MinGroupSize))
	}

	for platform, r := range c.PlatformRules {
		if r.AutoApproveThreshold < 0 || r.AutoApproveThreshold > 100 {
			errs = append(errs, fmt.Errorf("platform %s: auto_approve_threshold %v out of range (must be 0..100)", platform, r.AutoApproveThreshold))
		}
		if r.AutoRejectThreshold < 0 || r.AutoRejectThreshold > 100 {
			errs = append(errs, fmt.Errorf("platform %s: auto_reject_threshold %v out of range (must be 0..100)", platform, r.AutoRejectThreshold))
		}
		if r.ResponseTimeoutHours < 0 {
			errs = append(errs, fmt.Errorf("platform %s: response_timeout_hours %v must not be negative", platform, r.ResponseTimeoutHours))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Normalized clamps the config into a usable state: thresholds inside
// [0,100], reject strictly below approve, group size at least 1. An invalid
// document from an external edit is corrected here rather than propagated
// into decisions.
func (c AutomationConfig) Normalized() AutomationConfig {
	n := c.Clone()
	n.AutoApproveThreshold = clampf(n.AutoApproveThreshold, 0, 100)
	n.AutoRejectThreshold = clampf(n.AutoRejectThreshold, 0, 100)
	if n.AutoRejectThreshold > n.AutoApproveThreshold-1 {
		n.AutoRejectThreshold = n.AutoApproveThreshold - 1
	}
	if n.MinGroupSize < 1 {
		n.MinGroupSize = 1
	}
	return n
}

// effectiveApprove returns the approve threshold for platform. A platform
// rule overrides the global value only when it sets one.
func (c AutomationConfig) effectiveApprove(platform string) float64 {
	if r, ok := c.PlatformRules[platform]; ok && r.AutoApproveThreshold > 0 {
		return r.AutoApproveThreshold
	}
	return c.AutoApproveThreshold
}

// effectiveReject returns the reject threshold for platform.
func (c AutomationConfig) effectiveReject(platform string) float64 {
	if r, ok := c.PlatformRules[platform]; ok && r.AutoRejectThreshold > 0 {
		return r.AutoRejectThreshold
	}
	return c.AutoRejectThreshold
}

// escalationWindow returns the hours an awaiting_response item may sit before
// forced escalation: the platform rule's response timeout when the rule
// opts into auto-escalation, else the global window.
func (c AutomationConfig) escalationWindow(platform string) float64 {
	if r, ok := c.PlatformRules[platform]; ok && r.AutoEscalate && r.ResponseTimeoutHours > 0 {
		return r.ResponseTimeoutHours
	}
	return c.AutoEscalateHours
}

// ConfigStore serializes access to the live AutomationConfig. Triage passes
// take copy-on-read snapshots so no lock is held while a pass runs; the
// Adaptive Learner and administrator updates go through Update or Replace,
// the single-writer entry points.
type ConfigStore struct {
	mu  sync.Mutex
	cfg AutomationConfig
}

// NewConfigStore returns a store seeded with cfg.
func NewConfigStore(cfg AutomationConfig) *ConfigStore {
	return &ConfigStore{cfg: cfg.Clone()}
}

// Snapshot returns a normalized deep copy of the current config.
func (s *ConfigStore) Snapshot() AutomationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Normalized()
}

// Update applies fn to the config under the write lock and returns the
// resulting normalized snapshot.
func (s *ConfigStore) Update(fn func(*AutomationConfig)) AutomationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	return s.cfg.Normalized()
}

// Replace swaps in a whole new config document and returns its normalized
// snapshot.
func (s *ConfigStore) Replace(cfg AutomationConfig) AutomationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
	return s.cfg.Normalized()
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
