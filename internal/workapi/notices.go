package workapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/aegis/internal/notice"
)

func (a *API) handleDraftNotice(w http.ResponseWriter, r *http.Request) {
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

	draft, err := a.drafter.Draft(r.Context(), item, a.svc.GetConfig(r.Context()))
	if err != nil {
		a.logger.Error(r.Context(), err, "notice draft failed", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("aegis.notice.template", draft.Template))
	writeJSON(w, http.StatusOK, draft)
}

type templatesResponse struct {
	Templates []notice.Template `json:"templates"`
}

func (a *API) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, templatesResponse{Templates: a.drafter.Templates()})
}
