// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/aegis/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/aegis/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists work items and the automation config in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool stays owned by
// the caller, who closes it.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const workItemColumns = `id, fingerprint, lane, platform, profile_name, confidence, priority,
	suggested_action, detected_at, response_deadline, content_type, similarity, source_url,
	created_at, updated_at`

// ListWorkItems returns all items, filtered by lane when lane is non-empty.
// Order matches memstore: detected_at ascending with unset timestamps first,
// then ID.
func (s *Store) ListWorkItems(ctx context.Context, lane triage.Lane) ([]triage.WorkItem, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListWorkItems", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + workItemColumns + ` FROM work_items`
	args := []any{}
	if lane != "" {
		query += ` WHERE lane = $1`
		args = append(args, string(lane))
	}
	query += ` ORDER BY detected_at ASC NULLS FIRST, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var items []triage.WorkItem
	for rows.Next() {
		it, err := scanWorkItem(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate work items: %w", err)
	}

	span.SetAttributes(attribute.Int("aegis.items", len(items)))
	return items, nil
}

// GetWorkItem retrieves a work item by ID.
//
//nolint:dupl // similar structure to GetWorkItemByFingerprint is intentional
func (s *Store) GetWorkItem(ctx context.Context, id string) (*triage.WorkItem, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetWorkItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`
	it, err := scanWorkItem(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if it == nil {
		return nil, false, nil
	}
	return it, true, nil
}

// GetWorkItemByFingerprint retrieves the most recent work item carrying a
// detection fingerprint.
//
//nolint:dupl // similar structure to GetWorkItem is intentional
func (s *Store) GetWorkItemByFingerprint(ctx context.Context, fingerprint string) (*triage.WorkItem, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetWorkItemByFingerprint", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE fingerprint = $1 ORDER BY created_at DESC LIMIT 1`
	it, err := scanWorkItem(s.pool.QueryRow(ctx, query, fingerprint))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if it == nil {
		return nil, false, nil
	}
	return it, true, nil
}

// PutWorkItem inserts or updates one work item.
func (s *Store) PutWorkItem(ctx context.Context, item *triage.WorkItem) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutWorkItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if err := s.upsertWorkItem(ctx, tx, item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PutWorkItems inserts or updates a batch in one transaction, so a pass
// publishes all of its lane changes or none of them.
func (s *Store) PutWorkItems(ctx context.Context, items []triage.WorkItem) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutWorkItems", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
		attribute.Int("aegis.items", len(items)),
	))
	defer span.End()

	if len(items) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	for i := range items {
		if err := s.upsertWorkItem(ctx, tx, &items[i]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadConfig returns the persisted automation config document.
func (s *Store) LoadConfig(ctx context.Context) (*triage.AutomationConfig, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.LoadConfig", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM automation_config WHERE id`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("load config: %w", err)
	}

	var cfg triage.AutomationConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, true, nil
}

// SaveConfig upserts the single-row automation config document.
func (s *Store) SaveConfig(ctx context.Context, cfg *triage.AutomationConfig) error {
	ctx, span := tracer.Start(ctx, "pgstore.SaveConfig", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	doc, err := json.Marshal(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("marshal config: %w", err)
	}

	query := `INSERT INTO automation_config (id, document, updated_at) VALUES (TRUE, $1, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`
	if _, err := s.pool.Exec(ctx, query, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func (s *Store) upsertWorkItem(ctx context.Context, tx pgx.Tx, it *triage.WorkItem) error {
	query := `INSERT INTO work_items (` + workItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			lane = EXCLUDED.lane,
			platform = EXCLUDED.platform,
			profile_name = EXCLUDED.profile_name,
			confidence = EXCLUDED.confidence,
			priority = EXCLUDED.priority,
			suggested_action = EXCLUDED.suggested_action,
			detected_at = EXCLUDED.detected_at,
			response_deadline = EXCLUDED.response_deadline,
			content_type = EXCLUDED.content_type,
			similarity = EXCLUDED.similarity,
			source_url = EXCLUDED.source_url,
			updated_at = EXCLUDED.updated_at`

	var detectedAt *time.Time
	if !it.DetectedAt.IsZero() {
		detectedAt = &it.DetectedAt
	}

	_, err := tx.Exec(ctx, query,
		it.ID, it.Fingerprint, string(it.Lane), it.Platform, it.ProfileName,
		it.Confidence, string(it.Priority), string(it.SuggestedAction),
		detectedAt, it.ResponseDeadline, string(it.Metadata.ContentType),
		it.Metadata.Similarity, it.Metadata.SourceURL, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert work item: %w", err)
	}
	return nil
}

func scanWorkItem(row pgx.Row) (*triage.WorkItem, error) {
	var (
		it          triage.WorkItem
		lane        string
		priority    string
		action      string
		contentType string
		detectedAt  *time.Time
	)
	err := row.Scan(&it.ID, &it.Fingerprint, &lane, &it.Platform, &it.ProfileName,
		&it.Confidence, &priority, &action, &detectedAt, &it.ResponseDeadline,
		&contentType, &it.Metadata.Similarity, &it.Metadata.SourceURL,
		&it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan work item: %w", err)
	}

	it.Lane = triage.Lane(lane)
	it.Priority = triage.Priority(priority)
	it.SuggestedAction = triage.Action(action)
	it.Metadata.ContentType = triage.ContentType(contentType)
	if detectedAt != nil {
		it.DetectedAt = *detectedAt
	}
	return &it, nil
}
