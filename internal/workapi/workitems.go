package workapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/aegis/internal/triage"
)

type workItemsResponse struct {
	WorkItems []triage.WorkItem `json:"work_items"`
}

func (a *API) handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	lane := triage.Lane(r.URL.Query().Get("lane"))
	if lane != "" && !lane.Valid() {
		http.Error(w, `{"error":"unknown lane"}`, http.StatusBadRequest)
		return
	}

	items, err := a.svc.WorkItems(r.Context(), lane)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list work items", "lane", string(lane))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []triage.WorkItem{}
	}
	writeJSON(w, http.StatusOK, workItemsResponse{WorkItems: items})
}

func (a *API) handleGetWorkItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("aegis.work_item.id", id))

	item, ok, err := a.svc.WorkItem(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get work item", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("aegis.work_item.lane", string(item.Lane)))
	writeJSON(w, http.StatusOK, item)
}

type feedbackRequest struct {
	Action triage.FeedbackAction `json:"action"`
}

func (a *API) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		http.Error(w, `{"error":"action must be approve or reject"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("aegis.work_item.id", id),
		attribute.String("aegis.feedback.action", string(req.Action)),
	)

	item, err := a.svc.RecordFeedback(r.Context(), id, req.Action)
	if errors.Is(err, triage.ErrNotFound) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to record feedback", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
