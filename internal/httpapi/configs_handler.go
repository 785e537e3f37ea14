package httpapi

import (
	"net/http"
	"strings"

	"model_settings/internal/models"
	"model_settings/internal/utils"
)

// SetConfigRequest is the body of PUT /api/configs/{name}
type SetConfigRequest struct {
	ConfigValue string `json:"config_value"`
}

// handleListConfigs handles GET /api/configs
func (d *Dependencies) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := d.Configs.List(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err, "list configs")
		return
	}
	if entries == nil {
		entries = []*models.ConfigEntry{}
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}

func (d *Dependencies) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	var req SetConfigRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := d.Configs.Set(r.Context(), userID, name, req.ConfigValue); err != nil {
		respondStoreError(w, err, "set config")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, models.ConfigEntry{ConfigName: name, ConfigValue: req.ConfigValue})
}

func (d *Dependencies) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := d.Configs.Delete(r.Context(), userID, r.PathValue("name")); err != nil {
		respondStoreError(w, err, "delete config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
