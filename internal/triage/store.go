package triage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for work items and the automation
// config document.
type Store interface {
	// ListWorkItems returns all items, optionally filtered by lane when
	// lane is non-empty. Order is stable: detected_at ascending, then ID.
	ListWorkItems(ctx context.Context, lane Lane) ([]WorkItem, error)

	// GetWorkItem returns the item with the given ID, or (nil, false, nil)
	// when it does not exist.
	GetWorkItem(ctx context.Context, id string) (*WorkItem, bool, error)

	// GetWorkItemByFingerprint looks an item up by its detection
	// fingerprint, for intake dedup.
	GetWorkItemByFingerprint(ctx context.Context, fingerprint string) (*WorkItem, bool, error)

	// PutWorkItem inserts or replaces one item.
	PutWorkItem(ctx context.Context, item *WorkItem) error

	// PutWorkItems inserts or replaces a batch atomically.
	PutWorkItems(ctx context.Context, items []WorkItem) error

	// LoadConfig returns the persisted automation config, or (nil, false,
	// nil) when none has been saved yet.
	LoadConfig(ctx context.Context) (*AutomationConfig, bool, error)

	// SaveConfig persists the automation config document.
	SaveConfig(ctx context.Context, cfg *AutomationConfig) error
}
