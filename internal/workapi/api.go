// Package workapi exposes the triage pipeline over HTTP: detection intake,
// work item reads, pass runs, feedback, policy administration, and notice
// drafting.
package workapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/aegis/internal/authmw"
	"github.com/linnemanlabs/aegis/internal/notice"
	"github.com/linnemanlabs/aegis/internal/triage"
)

// Service defines the business operations workapi needs.
type Service interface {
	Ingest(ctx context.Context, detections []triage.Detection) (*triage.IngestResult, error)
	RunPass(ctx context.Context) (*triage.PassResult, error)
	Actions(ctx context.Context) ([]triage.ActionRequired, error)
	Digest(ctx context.Context) (string, error)
	WorkItems(ctx context.Context, lane triage.Lane) ([]triage.WorkItem, error)
	WorkItem(ctx context.Context, id string) (*triage.WorkItem, bool, error)
	RecordFeedback(ctx context.Context, id string, action triage.FeedbackAction) (*triage.WorkItem, error)
	GetConfig(ctx context.Context) triage.AutomationConfig
	UpdateConfig(ctx context.Context, cfg triage.AutomationConfig) (triage.AutomationConfig, error)
}

// Drafter renders enforcement notices for work items.
type Drafter interface {
	Draft(ctx context.Context, item *triage.WorkItem, cfg triage.AutomationConfig) (*notice.Draft, error)
	Templates() []notice.Template
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        Service
	drafter    Drafter
	adminToken string
}

// New creates a new API handler. adminToken guards the mutating admin
// routes; empty leaves them open.
func New(logger log.Logger, svc Service, drafter Drafter, adminToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if drafter == nil {
		panic(xerrors.New("notice drafter is required"))
	}
	return &API{
		logger:     logger,
		svc:        svc,
		drafter:    drafter,
		adminToken: adminToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detections", a.handleIngestDetections)
		r.Get("/workitems", a.handleListWorkItems)
		r.Get("/workitems/{id}", a.handleGetWorkItem)
		r.Post("/triage/pass", a.handleRunPass)
		r.Get("/actions", a.handleActions)
		r.Get("/digest", a.handleDigest)
		r.Get("/templates", a.handleListTemplates)

		// Reviewer and admin surface. An empty admin token leaves these open.
		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.adminToken))
			r.Post("/workitems/{id}/feedback", a.handleFeedback)
			r.Post("/workitems/{id}/notice", a.handleDraftNotice)
			r.Get("/config", a.handleGetConfig)
			r.Put("/config", a.handleUpdateConfig)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
