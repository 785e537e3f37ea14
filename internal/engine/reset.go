package engine

import (
	"context"
	"fmt"

	"model_settings/internal/catalog"
	"model_settings/internal/logging"
)

// Reset returns a candidate to its unconfigured state, deleting its persisted row.
// Resetting cloud only switches it off as default.
func (e *Engine) Reset(ctx context.Context, category Category, id string) error {
	switch category {
	case CategoryCustom:
		return e.DeleteCustom(ctx, id)
	case CategoryLocal:
		return e.ResetLocal(ctx, id)
	case CategoryCloud:
		return e.UnsetDefault(CategoryCloud, "")
	}
	return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
}

// DeleteCustom deletes a vendor's row and clears its form. Other candidates are not
// affected. On store failure the candidate is left intact.
func (e *Engine) DeleteCustom(ctx context.Context, id string) error {
	e.mu.Lock()
	c, ok := e.candidates[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}
	if err := e.acquire(CategoryCustom, id); err != nil {
		e.mu.Unlock()
		return err
	}
	defer e.release(CategoryCustom, id)
	providerID := c.ProviderID
	e.mu.Unlock()

	if err := e.deleteRow(ctx, id, providerID); err != nil {
		return err
	}

	e.mu.Lock()
	e.clearSelectionLocked(CategoryCustom, id)
	delete(e.suppressed, providerID)
	if e.pending.matches(CategoryCustom, id) {
		e.pending = nil
	}
	if v, ok := catalog.VendorByID(id); ok {
		c.APIHost = v.DefaultHost
	}
	c.APIKey = ""
	c.ModelType = ""
	c.ProviderID = 0
	c.IsValid = false
	for i := range c.ExternalConfig {
		c.ExternalConfig[i].Value = ""
	}
	delete(e.errors, key(CategoryCustom, id))
	e.mu.Unlock()

	e.refreshAfterMutation(ctx, id)
	return nil
}

// ResetLocal deletes a platform's row, restores its default endpoint, re-arms the
// endpoint auto-fix and rebuilds its model list.
func (e *Engine) ResetLocal(ctx context.Context, platform string) error {
	p, ok := catalog.LocalPlatformByID(platform)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, platform)
	}

	e.mu.Lock()
	l := e.locals[platform]
	if err := e.acquire(CategoryLocal, platform); err != nil {
		e.mu.Unlock()
		return err
	}
	defer e.release(CategoryLocal, platform)
	providerID := l.ProviderID
	e.mu.Unlock()

	if err := e.deleteRow(ctx, platform, providerID); err != nil {
		return err
	}

	e.mu.Lock()
	e.clearSelectionLocked(CategoryLocal, platform)
	delete(e.suppressed, providerID)
	if e.pending.matches(CategoryLocal, platform) {
		e.pending = nil
	}
	l.Endpoint = p.DefaultEndpoint
	l.ModelType = ""
	l.ProviderID = 0
	delete(e.errors, key(CategoryLocal, platform))
	delete(e.localError, platform)
	e.fixer.Reset(platform)
	e.models.Clear(platform)
	e.mu.Unlock()

	e.refreshAfterMutation(ctx, platform)
	if p.Discoverable() {
		e.RefreshModels(ctx, platform)
	}
	return nil
}

func (e *Engine) deleteRow(ctx context.Context, id string, providerID int64) error {
	if providerID == 0 {
		return nil
	}
	if err := e.store.Delete(ctx, providerID); err != nil {
		logging.Errorf("failed to delete provider %d (%s): %v", providerID, id, err)
		e.notifier.Notify(Notice{Level: LevelError, Title: titleDeleteFailed, Detail: err.Error()})
		return fmt.Errorf("failed to reset %s: %w", id, err)
	}
	return nil
}

func (e *Engine) refreshAfterMutation(ctx context.Context, id string) {
	if err := e.Refresh(ctx); err != nil {
		logging.Warningf("refresh after resetting %s failed: %v", id, err)
	}
}
