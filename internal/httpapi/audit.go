package httpapi

import (
	"context"

	"model_settings/internal/logging"
	"model_settings/internal/middleware"
)

// audit records a mutation; sink failures are logged, never surfaced
func (d *Dependencies) audit(ctx context.Context, action string, providerID int64, providerName string, cause error) {
	if d.Audit == nil {
		return
	}
	userID, _ := middleware.GetUserID(ctx)
	rec := &logging.AuditRecord{
		RequestID:    middleware.GetRequestID(ctx),
		UserID:       userID,
		Action:       action,
		ProviderID:   providerID,
		ProviderName: providerName,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := d.Audit.Enqueue(ctx, rec); err != nil {
		logging.Warningf("failed to record %s audit for user %s: %v", action, userID, err)
	}
}
