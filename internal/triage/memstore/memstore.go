// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/aegis/internal/triage"
)

// Store holds work items and the automation config in memory. Suitable for
// dev/testing and single-node deployments without a database.
type Store struct {
	mu    sync.RWMutex
	items map[string]*triage.WorkItem // work item ID -> item
	seen  map[string]string           // detection fingerprint -> work item ID
	cfg   *triage.AutomationConfig
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items: make(map[string]*triage.WorkItem),
		seen:  make(map[string]string),
	}
}

// ListWorkItems returns copies of all items, optionally filtered by lane,
// ordered by detected_at ascending then ID.
func (s *Store) ListWorkItems(_ context.Context, lane triage.Lane) ([]triage.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]triage.WorkItem, 0, len(s.items))
	for _, it := range s.items {
		if lane != "" && it.Lane != lane {
			continue
		}
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetWorkItem retrieves a work item by ID. Returns a copy.
func (s *Store) GetWorkItem(_ context.Context, id string) (*triage.WorkItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	cp := it.Clone()
	return &cp, true, nil
}

// GetWorkItemByFingerprint retrieves a work item by detection fingerprint,
// for intake dedup. Returns a copy.
func (s *Store) GetWorkItemByFingerprint(_ context.Context, fp string) (*triage.WorkItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[fp]
	if !ok {
		return nil, false, nil
	}
	cp := s.items[id].Clone()
	return &cp, true, nil
}

// PutWorkItem stores a copy of the work item.
func (s *Store) PutWorkItem(_ context.Context, item *triage.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(item)
	return nil
}

// PutWorkItems stores copies of all items. The in-memory store has no
// transactions; the batch is applied under one lock acquisition.
func (s *Store) PutWorkItems(_ context.Context, items []triage.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		s.put(&items[i])
	}
	return nil
}

func (s *Store) put(item *triage.WorkItem) {
	cp := item.Clone()
	s.items[item.ID] = &cp
	if item.Fingerprint != "" {
		s.seen[item.Fingerprint] = item.ID
	}
}

// LoadConfig returns a copy of the stored automation config.
func (s *Store) LoadConfig(_ context.Context) (*triage.AutomationConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, false, nil
	}
	cp := s.cfg.Clone()
	return &cp, true, nil
}

// SaveConfig stores a copy of the automation config.
func (s *Store) SaveConfig(_ context.Context, cfg *triage.AutomationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cfg.Clone()
	s.cfg = &cp
	return nil
}
