package workapi

import (
	"encoding/json"
	"net/http"

	"github.com/linnemanlabs/aegis/internal/triage"
)

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.GetConfig(r.Context()))
}

func (a *API) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg triage.AutomationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := a.svc.UpdateConfig(r.Context(), cfg)
	if err != nil {
		a.logger.Error(r.Context(), err, "config update failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}
