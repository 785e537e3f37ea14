package engine

import (
	"context"
	"fmt"
	"sync"

	"model_settings/internal/catalog"
	"model_settings/internal/logging"
	"model_settings/internal/store"
)

// Load hydrates every candidate from the store and starts model discovery for each
// discovery-capable platform. mode is the application-level backend choice; cloud wins
// over any preferred row because cloud has none.
func (e *Engine) Load(ctx context.Context, mode Category) error {
	rows, err := e.store.List(ctx)
	if err != nil {
		e.notifier.Notify(Notice{Level: LevelError, Title: titleRefreshFailed, Detail: err.Error()})
		return fmt.Errorf("failed to load providers: %w", err)
	}

	e.mu.Lock()
	if mode == CategoryCloud && e.cloudOK {
		e.selection = CloudSelection()
	}
	e.reconcileLocked(rows)
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range catalog.LocalPlatforms() {
		if !p.Discoverable() {
			continue
		}
		wg.Add(1)
		go func(platform string) {
			defer wg.Done()
			e.RefreshModels(ctx, platform)
		}(p.ID)
	}
	wg.Wait()

	logging.Debugf("engine loaded %d provider rows, selection %s", len(rows), e.Selection())
	return nil
}

// Refresh re-fetches the provider list and reconciles every candidate with it.
func (e *Engine) Refresh(ctx context.Context) error {
	rows, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh providers: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconcileLocked(rows)
	return nil
}

// localPlatformOf returns the local platform a row belongs to, if any.
func localPlatformOf(row store.ProviderRow) (string, bool) {
	if p := row.EncryptedConfig["model_platform"]; catalog.IsLocalPlatform(p) {
		return p, true
	}
	if catalog.IsLocalPlatform(row.ProviderName) {
		return row.ProviderName, true
	}
	return "", false
}

// reconcileLocked overwrites persisted fields of every candidate with the server copy
// and derives the selection from the rows' prefer flags. The caller must hold e.mu.
func (e *Engine) reconcileLocked(rows []store.ProviderRow) {
	customRows := make(map[string]store.ProviderRow)
	localRows := make(map[string]store.ProviderRow)
	var preferred []Selection
	e.serverPreferred = e.serverPreferred[:0]

	for _, row := range rows {
		if row.Prefer {
			e.serverPreferred = append(e.serverPreferred, row.ID)
		}
		if platform, ok := localPlatformOf(row); ok {
			localRows[platform] = row
			if row.Prefer && !e.suppressed[row.ID] {
				preferred = append(preferred, LocalSelection(platform))
			}
			continue
		}
		if _, ok := e.candidates[row.ProviderName]; ok {
			customRows[row.ProviderName] = row
			if row.Prefer && !e.suppressed[row.ID] {
				preferred = append(preferred, CustomSelection(row.ProviderName))
			}
			continue
		}
		logging.Debugf("ignoring provider row %d with unknown name %q", row.ID, row.ProviderName)
	}

	for id, c := range e.candidates {
		row, ok := customRows[id]
		if !ok {
			c.ProviderID = 0
			c.IsValid = false
			continue
		}
		c.ProviderID = row.ID
		c.APIKey = row.APIKey
		c.APIHost = row.EndpointURL
		if c.APIHost == "" {
			if v, ok := catalog.VendorByID(id); ok {
				c.APIHost = v.DefaultHost
			}
		}
		c.ModelType = row.ModelType
		c.IsValid = row.IsValid
		for i := range c.ExternalConfig {
			if v, ok := row.EncryptedConfig[c.ExternalConfig[i].Key]; ok {
				c.ExternalConfig[i].Value = v
			}
		}
	}

	for platform, l := range e.locals {
		row, ok := localRows[platform]
		if !ok {
			l.ProviderID = 0
			continue
		}
		l.ProviderID = row.ID
		l.Endpoint = row.EndpointURL
		if l.Endpoint == "" {
			l.Endpoint = catalog.DefaultEndpoint(platform)
		}
		l.ModelType = row.EncryptedConfig["model_type"]
		if l.ModelType == "" {
			l.ModelType = row.ModelType
		}
	}

	if e.selection.Category == CategoryCloud {
		e.suppressServerPreferredLocked()
		return
	}

	switch len(preferred) {
	case 0:
		e.selection = Selection{}
	case 1:
		e.selection = preferred[0]
	default:
		for _, sel := range preferred {
			if sel == e.selection {
				logging.Warningf("store reports %d preferred providers, keeping %s", len(preferred), sel)
				return
			}
		}
		logging.Warningf("store reports %d preferred providers, using %s", len(preferred), preferred[0])
		e.selection = preferred[0]
	}
}

// suppressServerPreferredLocked hides every row the server still prefers. Cloud has no
// row, so selecting it leaves the previous winner flagged on the server.
func (e *Engine) suppressServerPreferredLocked() {
	for _, id := range e.serverPreferred {
		e.suppressed[id] = true
	}
}
