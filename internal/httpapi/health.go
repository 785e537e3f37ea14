package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"model_settings/internal/logging"
	"model_settings/internal/utils"
)

const healthTimeout = 3 * time.Second

// handleHealth pings every backing service; any failure answers 503
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(d.Health))
	for name := range d.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := d.Health[name](ctx); err != nil {
			logging.Errorf("health check %s failed: %v", name, err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	utils.RespondWithJSON(w, status, map[string]any{"status": state, "checks": checks})
}
