package workapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/aegis/internal/triage"
)

type ingestRequest struct {
	Detections []triage.Detection `json:"detections"`
}

func (a *API) handleIngestDetections(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("aegis.detections", len(req.Detections)))

	res, err := a.svc.Ingest(r.Context(), req.Detections)
	if err != nil {
		a.logger.Error(r.Context(), err, "detection ingest failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.Int("aegis.accepted", len(res.Accepted)),
		attribute.Int("aegis.skipped", len(res.Skipped)),
	)
	writeJSON(w, http.StatusAccepted, res)
}
