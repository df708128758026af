package workapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/aegis/internal/triage"
)

func (a *API) handleRunPass(w http.ResponseWriter, r *http.Request) {
	pr, err := a.svc.RunPass(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "triage pass failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("aegis.pass.id", pr.ID),
		attribute.Int("aegis.pass.items", pr.Items),
		attribute.Int("aegis.pass.changed", pr.Changed),
	)
	writeJSON(w, http.StatusOK, pr)
}

type actionsResponse struct {
	Actions []triage.ActionRequired `json:"actions"`
}

func (a *API) handleActions(w http.ResponseWriter, r *http.Request) {
	actions, err := a.svc.Actions(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to compute action list")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if actions == nil {
		actions = []triage.ActionRequired{}
	}
	writeJSON(w, http.StatusOK, actionsResponse{Actions: actions})
}

type digestResponse struct {
	Digest string `json:"digest"`
}

func (a *API) handleDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := a.svc.Digest(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to render digest")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, digestResponse{Digest: digest})
}
