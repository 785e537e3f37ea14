package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"model_settings/internal/logging"
	"model_settings/internal/utils"
	"model_settings/internal/validation"
)

// validateHandler serves POST /model/validate
type validateHandler struct {
	deps    *Dependencies
	limit   int
	timeout time.Duration
}

func (h *validateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req validation.Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Platform = strings.TrimSpace(req.Platform)
	req.ModelType = strings.TrimSpace(req.ModelType)

	fields := map[string]string{}
	if req.Platform == "" {
		fields["model_platform"] = "model_platform is required"
	}
	if req.ModelType == "" {
		fields["model_type"] = "model_type is required"
	}
	if len(fields) > 0 {
		utils.RespondWithFieldErrors(w, http.StatusBadRequest, "Invalid validation request", fields)
		return
	}

	memoKey, err := utils.HashJSON(struct {
		UserID  string             `json:"user_id"`
		Request validation.Request `json:"request"`
	}{userID, req})
	if err != nil {
		memoKey = ""
	}
	if memoKey != "" && h.deps.ValidationMemo != nil {
		if cached, ok := h.deps.ValidationMemo.Get(memoKey); ok {
			utils.RespondWithJSON(w, http.StatusOK, cached)
			return
		}
	}

	if !h.allow(w, r, userID) {
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.deps.Prober.Probe(ctx, req)
	if err != nil {
		h.deps.audit(r.Context(), logging.ActionValidate, 0, req.Platform, err)
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if resp.Succeeded() {
		h.deps.audit(r.Context(), logging.ActionValidate, 0, req.Platform, nil)
		if memoKey != "" && h.deps.ValidationMemo != nil {
			h.deps.ValidationMemo.Set(memoKey, resp)
		}
	} else {
		h.deps.audit(r.Context(), logging.ActionValidate, 0, req.Platform, &validation.RejectedError{Message: resp.BestMessage(), Response: resp})
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// allow applies the per-user validation limit. Limiter failures let the request through.
func (h *validateHandler) allow(w http.ResponseWriter, r *http.Request, userID string) bool {
	if h.deps.RateLimit == nil {
		return true
	}

	allowed, remaining, resetAt, err := h.deps.RateLimit.AllowWithDetails(r.Context(), "validate:"+userID, h.limit)
	if err != nil {
		logging.Warningf("validation rate limit check failed for %s: %v", userID, err)
		return true
	}
	if remaining >= 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}
	if allowed {
		return true
	}

	retry := int(time.Until(resetAt).Seconds()) + 1
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
	return false
}
