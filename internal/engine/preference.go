package engine

import (
	"context"
	"fmt"
	"slices"

	"model_settings/internal/catalog"
	"model_settings/internal/logging"
)

// Names of the user configs whose absence triggers the search advisory.
const (
	SearchAPIKeyConfig   = "GOOGLE_API_KEY"
	SearchEngineIDConfig = "SEARCH_ENGINE_ID"
)

// SetDefault makes the candidate the single default backend. An unconfigured target
// only records a pending marker and asks the surface to focus its configuration; the
// promotion completes when that candidate is saved. For cloud, id optionally names the
// cloud model to use.
func (e *Engine) SetDefault(ctx context.Context, category Category, id string) error {
	e.mu.Lock()
	if err := e.checkKnownLocked(category, id); err != nil {
		e.mu.Unlock()
		return err
	}

	if !e.configuredLocked(category, id) {
		pendingID := id
		if category == CategoryCloud {
			pendingID = ""
		}
		e.pending = &PendingDefault{Category: category, ID: pendingID}
		e.mu.Unlock()

		logging.Debugf("%s is not configured, default is pending", key(category, id))
		e.notifier.Notify(Notice{Level: LevelInfo, Title: titleConfigureFirst})
		e.notifier.Focus(category, pendingID)
		return nil
	}

	if category == CategoryCloud {
		e.selection = CloudSelection()
		e.suppressServerPreferredLocked()
		if id != "" && id != catalog.CloudID {
			e.cloudModel = id
		}
		if e.pending.matches(CategoryCloud, "") {
			e.pending = nil
		}
		e.mu.Unlock()

		logging.Debugf("default set to cloud (%s)", id)
		e.notifier.Notify(Notice{Level: LevelSuccess, Title: titleDefaultUpdated})
		return nil
	}

	var providerID int64
	if category == CategoryCustom {
		providerID = e.candidates[id].ProviderID
	} else {
		providerID = e.locals[id].ProviderID
	}
	e.mu.Unlock()

	return e.promote(ctx, Selection{Category: category, ID: id}, providerID)
}

// promote asks the store to prefer providerID. Local state changes only after the
// store confirms; on failure the previous selection is left as it was.
func (e *Engine) promote(ctx context.Context, winner Selection, providerID int64) error {
	e.searchAdvisory(ctx)

	if err := e.store.SetPreferred(ctx, providerID); err != nil {
		logging.Errorf("failed to prefer %s: %v", winner, err)
		e.notifier.Notify(Notice{Level: LevelError, Title: titleDefaultFailed, Detail: err.Error()})
		return fmt.Errorf("failed to set %s as default: %w", winner, err)
	}

	e.mu.Lock()
	e.selection = winner
	clear(e.suppressed)
	if e.pending.matches(winner.Category, winner.ID) {
		e.pending = nil
	}
	e.mu.Unlock()

	if err := e.Refresh(ctx); err != nil {
		logging.Warningf("refresh after preferring %s failed: %v", winner, err)
	}

	// Whatever the refreshed rows say about other candidates, the winner stays selected.
	e.mu.Lock()
	e.selection = winner
	e.mu.Unlock()

	logging.Debugf("default set to %s", winner)
	e.notifier.Notify(Notice{Level: LevelSuccess, Title: titleDefaultUpdated})
	return nil
}

// searchAdvisory warns when the search configs are missing. It never fails.
func (e *Engine) searchAdvisory(ctx context.Context) {
	entries, err := e.store.Configs(ctx)
	if err != nil {
		logging.Warningf("failed to read configs for search advisory: %v", err)
		e.notifier.Notify(Notice{Level: LevelWarning, Title: titleSearchMissing, Detail: detailSearchMissing})
		return
	}

	var hasKey, hasEngine bool
	for _, entry := range entries {
		switch entry.ConfigName {
		case SearchAPIKeyConfig:
			hasKey = true
		case SearchEngineIDConfig:
			hasEngine = true
		}
	}
	if !hasKey || !hasEngine {
		e.notifier.Notify(Notice{Level: LevelWarning, Title: titleSearchMissing, Detail: detailSearchMissing})
	}
}

// UnsetDefault switches the candidate off as default without touching the store.
// The switch-off survives later refreshes until another promotion happens.
func (e *Engine) UnsetDefault(category Category, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkKnownLocked(category, id); err != nil {
		return err
	}
	e.clearSelectionLocked(category, id)
	return nil
}

func (e *Engine) clearSelectionLocked(category Category, id string) {
	sel := Selection{Category: category, ID: id}
	if category == CategoryCloud {
		sel = CloudSelection()
	}
	if e.selection != sel {
		return
	}

	switch category {
	case CategoryCustom:
		e.suppressLocked(e.candidates[id].ProviderID)
	case CategoryLocal:
		e.suppressLocked(e.locals[id].ProviderID)
	case CategoryCloud:
		e.suppressServerPreferredLocked()
	}
	e.selection = Selection{}
	logging.Debugf("default %s switched off", sel)
}

func (e *Engine) suppressLocked(providerID int64) {
	if providerID != 0 {
		e.suppressed[providerID] = true
	}
}

// Suppressed returns the provider rows switched off locally, in ascending order.
func (e *Engine) Suppressed() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]int64, 0, len(e.suppressed))
	for id := range e.suppressed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RestoreSuppressed re-applies switch-offs saved by an earlier session. Call it before
// Load so the first reconcile already ignores those rows.
func (e *Engine) RestoreSuppressed(ids []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range ids {
		e.suppressLocked(id)
	}
}

func (e *Engine) checkKnownLocked(category Category, id string) error {
	switch category {
	case CategoryCloud:
		if id != "" && id != catalog.CloudID {
			if _, ok := cloudModelIDs()[id]; !ok {
				logging.Debugf("cloud model %q is not in the catalog", id)
			}
		}
		return nil
	case CategoryCustom:
		if _, ok := e.candidates[id]; ok {
			return nil
		}
	case CategoryLocal:
		if _, ok := e.locals[id]; ok {
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	return fmt.Errorf("%w: %s", ErrUnknownCandidate, key(category, id))
}

func cloudModelIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, m := range catalog.CloudModels() {
		ids[m.ID] = struct{}{}
	}
	return ids
}
