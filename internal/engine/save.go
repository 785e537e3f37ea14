package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"model_settings/internal/catalog"
	"model_settings/internal/logging"
	"model_settings/internal/store"
	"model_settings/internal/validation"
)

// SaveCustom validates the working configuration of a vendor, persists it and
// reconciles every candidate with the store. A pending default for this vendor is
// consumed on success; otherwise the default is left unchanged.
func (e *Engine) SaveCustom(ctx context.Context, id string) error {
	e.mu.Lock()
	c, ok := e.candidates[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}

	fieldErrs := FieldErrors{}
	if strings.TrimSpace(c.APIKey) == "" {
		fieldErrs[FieldAPIKey] = "API key can not be empty"
	}
	if strings.TrimSpace(c.APIHost) == "" {
		fieldErrs[FieldAPIHost] = "API host can not be empty"
	}
	if strings.TrimSpace(c.ModelType) == "" {
		fieldErrs[FieldModelType] = "Model type can not be empty"
	}
	if len(fieldErrs) > 0 {
		e.errors[key(CategoryCustom, id)] = fieldErrs
		e.mu.Unlock()
		return fieldErrs.clone()
	}
	delete(e.errors, key(CategoryCustom, id))

	if err := e.acquire(CategoryCustom, id); err != nil {
		e.mu.Unlock()
		return err
	}
	defer e.release(CategoryCustom, id)

	var extra store.Config
	params := map[string]string{}
	if len(c.ExternalConfig) > 0 {
		extra = store.Config{}
		for _, f := range c.ExternalConfig {
			extra[f.Key] = f.Value
			params[f.Key] = f.Value
		}
	}
	req := validation.Request{
		Platform:    id,
		ModelType:   c.ModelType,
		APIKey:      c.APIKey,
		URL:         c.APIHost,
		ExtraParams: params,
	}
	data := store.ProviderData{
		ProviderName:    id,
		APIKey:          c.APIKey,
		EndpointURL:     c.APIHost,
		IsValid:         true,
		ModelType:       c.ModelType,
		EncryptedConfig: extra,
	}
	providerID := c.ProviderID
	e.mu.Unlock()

	if _, err := e.validator.Validate(ctx, req); err != nil {
		msg := rejectionMessage(err)
		e.mu.Lock()
		e.errors[key(CategoryCustom, id)] = FieldErrors{FieldAPIKey: msg}
		e.mu.Unlock()
		logging.Infof("validation of %s rejected: %v", id, err)
		return fmt.Errorf("validation of %s failed: %w", id, err)
	}
	e.notifier.Notify(Notice{Level: LevelSuccess, Title: titleValidateSuccess, Detail: detailValidateOK})

	if err := e.persist(ctx, CategoryCustom, id, providerID, data); err != nil {
		return err
	}
	return e.consumePending(ctx, CategoryCustom, id)
}

// SaveLocal validates and persists a local platform. Platforms with a health path are
// checked for reachability instead of being sent to the validation service.
func (e *Engine) SaveLocal(ctx context.Context, platform string) error {
	p, ok := catalog.LocalPlatformByID(platform)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, platform)
	}

	e.mu.Lock()
	l := e.locals[platform]

	fieldErrs := FieldErrors{}
	if strings.TrimSpace(l.Endpoint) == "" {
		fieldErrs[FieldEndpoint] = "Endpoint URL can not be empty"
	}
	if strings.TrimSpace(l.ModelType) == "" {
		fieldErrs[FieldModelType] = "Model type can not be empty"
	}
	if len(fieldErrs) > 0 {
		e.errors[key(CategoryLocal, platform)] = fieldErrs
		e.mu.Unlock()
		return fieldErrs.clone()
	}
	delete(e.errors, key(CategoryLocal, platform))

	if err := e.acquire(CategoryLocal, platform); err != nil {
		e.mu.Unlock()
		return err
	}
	defer e.release(CategoryLocal, platform)

	fixed := e.applyAutoFixLocked(l)
	endpointURL := strings.TrimSpace(l.Endpoint)
	modelType := strings.TrimSpace(l.ModelType)
	providerID := l.ProviderID
	delete(e.localError, platform)
	e.mu.Unlock()

	if fixed {
		e.notifyAutoFix(endpointURL)
	}

	if p.SkipsValidation() {
		if err := e.discover.CheckHealth(ctx, p, endpointURL); err != nil {
			msg := err.Error()
			e.mu.Lock()
			e.localError[platform] = msg
			e.mu.Unlock()
			e.notifier.Notify(Notice{Level: LevelError, Title: titleValidateFailed, Detail: msg})
			return fmt.Errorf("health check of %s failed: %w", platform, err)
		}
	} else {
		_, err := e.validator.Validate(ctx, validation.Request{
			Platform:  platform,
			ModelType: modelType,
			APIKey:    catalog.NotRequiredKey,
			URL:       endpointURL,
		})
		if err != nil {
			msg := rejectionMessage(err)
			e.mu.Lock()
			e.localError[platform] = msg
			e.mu.Unlock()
			e.notifier.Notify(Notice{Level: LevelError, Title: titleValidateFailed, Detail: msg})
			return fmt.Errorf("validation of %s failed: %w", platform, err)
		}
		e.notifier.Notify(Notice{Level: LevelSuccess, Title: titleValidateSuccess, Detail: detailValidateOK})
	}

	data := store.ProviderData{
		ProviderName: platform,
		APIKey:       catalog.NotRequiredKey,
		EndpointURL:  endpointURL,
		IsValid:      true,
		ModelType:    modelType,
		EncryptedConfig: store.Config{
			"model_platform": platform,
			"model_type":     modelType,
		},
	}
	if err := e.persist(ctx, CategoryLocal, platform, providerID, data); err != nil {
		e.mu.Lock()
		e.localError[platform] = err.Error()
		e.mu.Unlock()
		return err
	}
	return e.consumePending(ctx, CategoryLocal, platform)
}

// persist creates or updates the row, then reconciles with a fresh provider list.
func (e *Engine) persist(ctx context.Context, category Category, id string, providerID int64, data store.ProviderData) error {
	var (
		row *store.ProviderRow
		err error
	)
	if providerID != 0 {
		row, err = e.store.Update(ctx, providerID, data)
	} else {
		row, err = e.store.Create(ctx, data)
	}
	if err != nil {
		e.notifier.Notify(Notice{Level: LevelError, Title: titleSaveFailed, Detail: err.Error()})
		return fmt.Errorf("failed to save %s: %w", id, err)
	}

	if err := e.Refresh(ctx); err != nil {
		// The row is saved; keep its id so the candidate still counts as configured.
		logging.Warningf("refresh after saving %s failed: %v", id, err)
		if row != nil && row.ID != 0 {
			e.mu.Lock()
			e.setProviderIDLocked(category, id, row.ID)
			e.mu.Unlock()
		}
	}
	logging.Debugf("saved %s", key(category, id))
	return nil
}

func (e *Engine) setProviderIDLocked(category Category, id string, providerID int64) {
	switch category {
	case CategoryCustom:
		if c, ok := e.candidates[id]; ok {
			c.ProviderID = providerID
			c.IsValid = true
		}
	case CategoryLocal:
		if l, ok := e.locals[id]; ok {
			l.ProviderID = providerID
		}
	}
}

// consumePending promotes the candidate when a pending default targets it.
func (e *Engine) consumePending(ctx context.Context, category Category, id string) error {
	e.mu.Lock()
	match := e.pending.matches(category, id)
	if match {
		e.pending = nil
	}
	e.mu.Unlock()

	if !match {
		return nil
	}
	logging.Debugf("completing pending default %s", key(category, id))
	return e.SetDefault(ctx, category, id)
}

func rejectionMessage(err error) string {
	var rejected *validation.RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return validation.FallbackMessage
}
