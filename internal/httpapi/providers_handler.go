package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"model_settings/internal/logging"
	"model_settings/internal/middleware"
	"model_settings/internal/models"
	"model_settings/internal/storage"
	"model_settings/internal/utils"
)

// PreferRequest is the body of POST /api/provider/prefer
type PreferRequest struct {
	ProviderID int64 `json:"provider_id"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user")
	}
	return userID, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid provider id")
		return 0, false
	}
	return id, true
}

// validateInput checks the fields every stored row needs
func validateInput(in *models.ProviderInput) map[string]string {
	in.ProviderName = strings.TrimSpace(in.ProviderName)
	in.EndpointURL = strings.TrimSpace(in.EndpointURL)
	in.ModelType = strings.TrimSpace(in.ModelType)

	fields := map[string]string{}
	if in.ProviderName == "" {
		fields["provider_name"] = "provider_name is required"
	}
	if in.ModelType == "" {
		fields["model_type"] = "model_type is required"
	}
	return fields
}

// respondStoreError maps repository errors to status codes
func respondStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrProviderNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Provider not found")
	case errors.Is(err, storage.ErrProviderExists):
		utils.RespondWithError(w, http.StatusConflict, "A provider with this name already exists")
	case errors.Is(err, storage.ErrConfigNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Config not found")
	default:
		logging.Errorf("%s failed: %v", op, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to "+op)
	}
}

// handleListProviders handles GET /api/providers
func (d *Dependencies) handleListProviders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	list, err := d.Providers.List(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err, "list providers")
		return
	}
	if list == nil {
		list = []*models.Provider{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// handleCreateProvider handles POST /api/provider
func (d *Dependencies) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in models.ProviderInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if fields := validateInput(&in); len(fields) > 0 {
		utils.RespondWithFieldErrors(w, http.StatusBadRequest, "Invalid provider", fields)
		return
	}

	p, err := d.Providers.Create(r.Context(), userID, in)
	if err != nil {
		d.audit(r.Context(), logging.ActionCreate, 0, in.ProviderName, err)
		respondStoreError(w, err, "create provider")
		return
	}

	d.audit(r.Context(), logging.ActionCreate, p.ID, p.ProviderName, nil)
	logging.Infof("user %s created provider %d (%s)", userID, p.ID, p.ProviderName)
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// handleUpdateProvider handles PUT /api/provider/{id}
func (d *Dependencies) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var in models.ProviderInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if fields := validateInput(&in); len(fields) > 0 {
		utils.RespondWithFieldErrors(w, http.StatusBadRequest, "Invalid provider", fields)
		return
	}

	p, err := d.Providers.Update(r.Context(), userID, id, in)
	d.audit(r.Context(), logging.ActionUpdate, id, in.ProviderName, err)
	if err != nil {
		respondStoreError(w, err, "update provider")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// handleDeleteProvider handles DELETE /api/provider/{id}
func (d *Dependencies) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := d.Providers.Delete(r.Context(), userID, id)
	d.audit(r.Context(), logging.ActionDelete, id, "", err)
	if err != nil {
		respondStoreError(w, err, "delete provider")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreferProvider handles POST /api/provider/prefer
func (d *Dependencies) handlePreferProvider(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req PreferRequest
	if err := utils.DecodeJSON(r, &req); err != nil || req.ProviderID <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	err := d.Providers.SetPreferred(r.Context(), userID, req.ProviderID)
	d.audit(r.Context(), logging.ActionPrefer, req.ProviderID, "", err)
	if err != nil {
		respondStoreError(w, err, "set preferred provider")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"provider_id": req.ProviderID, "prefer": true})
}
