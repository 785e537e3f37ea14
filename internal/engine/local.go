package engine

import (
	"context"
	"fmt"
	"strings"

	"model_settings/internal/catalog"
	"model_settings/internal/discovery"
	"model_settings/internal/endpoint"
	"model_settings/internal/logging"
)

// SetCustomField edits api_key, api_host or model_type of a vendor and clears that
// field's error.
func (e *Engine) SetCustomField(id, field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.candidates[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}
	switch field {
	case FieldAPIKey:
		c.APIKey = value
	case FieldAPIHost:
		c.APIHost = value
	case FieldModelType:
		c.ModelType = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}
	e.clearFieldErrorLocked(CategoryCustom, id, field)
	return nil
}

// SetExternalValue edits one extra-config entry of a vendor.
func (e *Engine) SetExternalValue(id, fieldKey, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.candidates[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}
	for i := range c.ExternalConfig {
		if c.ExternalConfig[i].Key != fieldKey {
			continue
		}
		if opts := c.ExternalConfig[i].Options; len(opts) > 0 && !hasOption(opts, value) {
			return fmt.Errorf("%w: %q is not an option of %s", ErrInvalidInput, value, fieldKey)
		}
		c.ExternalConfig[i].Value = value
		return nil
	}
	return fmt.Errorf("%w: %s has no field %q", ErrInvalidInput, id, fieldKey)
}

func hasOption(opts []catalog.Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

func (e *Engine) clearFieldErrorLocked(category Category, id, field string) {
	k := key(category, id)
	errs := e.errors[k]
	if errs == nil {
		return
	}
	delete(errs, field)
	if len(errs) == 0 {
		delete(e.errors, k)
	}
}

// SetLocalEndpoint edits a platform endpoint and clears its save and discovery errors.
func (e *Engine) SetLocalEndpoint(platform, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locals[platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, platform)
	}
	l.Endpoint = value
	e.clearFieldErrorLocked(CategoryLocal, platform, FieldEndpoint)
	delete(e.localError, platform)
	e.models.ClearError(platform)
	return nil
}

// SetLocalModelType edits a platform model type.
func (e *Engine) SetLocalModelType(platform, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locals[platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, platform)
	}
	l.ModelType = value
	e.clearFieldErrorLocked(CategoryLocal, platform, FieldModelType)
	return nil
}

// BlurLocalEndpoint runs when the user leaves the endpoint field: a host-only endpoint of
// an auto-fix platform gets the version suffix once per session, with a single notice.
// It reports whether the endpoint was rewritten.
func (e *Engine) BlurLocalEndpoint(platform string) (bool, error) {
	e.mu.Lock()
	l, ok := e.locals[platform]
	if !ok {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownCandidate, platform)
	}
	fixed := e.applyAutoFixLocked(l)
	ep := l.Endpoint
	e.mu.Unlock()

	if fixed {
		e.notifyAutoFix(ep)
	}
	return fixed, nil
}

// applyAutoFixLocked rewrites l.Endpoint when the one-shot fix is still available.
func (e *Engine) applyAutoFixLocked(l *LocalConfig) bool {
	fixed, ok := e.fixer.Apply(l.Platform, strings.TrimSpace(l.Endpoint))
	if !ok {
		return false
	}
	logging.Infof("endpoint of %s rewritten to %s", l.Platform, fixed)
	l.Endpoint = fixed
	return true
}

func (e *Engine) notifyAutoFix(fixed string) {
	e.notifier.Notify(Notice{
		Level:  LevelInfo,
		Title:  titleEndpointFixed,
		Detail: fmt.Sprintf("Added %s to the endpoint: %s", endpoint.RequiredSuffix, fixed),
	})
}

// RefreshModels runs discovery for a platform. A result that arrives after a newer
// request for the same platform was started is discarded.
func (e *Engine) RefreshModels(ctx context.Context, platform string) discovery.State {
	p, ok := catalog.LocalPlatformByID(platform)
	if !ok || !p.Discoverable() {
		return discovery.State{}
	}

	e.mu.Lock()
	ep := e.locals[platform].Endpoint
	e.mu.Unlock()

	token := e.models.Begin(platform)
	result := e.discover.Discover(ctx, p, ep)
	if !e.models.Finish(platform, token, result) {
		logging.Debugf("discarding stale model list for %s", platform)
	}
	return e.models.Get(platform)
}

// Models returns the cached discovery state of a platform.
func (e *Engine) Models(platform string) discovery.State {
	return e.models.Get(platform)
}

// ModelOptions lists the discovered models of a platform with the current model type
// first when it was not discovered. Empty and duplicate entries are dropped.
func (e *Engine) ModelOptions(platform string) []string {
	e.mu.Lock()
	var current string
	if l, ok := e.locals[platform]; ok {
		current = strings.TrimSpace(l.ModelType)
	}
	e.mu.Unlock()

	discovered := e.models.Get(platform).Models
	seen := make(map[string]bool, len(discovered)+1)
	options := make([]string, 0, len(discovered)+1)

	add := func(m string) {
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		options = append(options, m)
	}

	found := false
	for _, m := range discovered {
		if m == current {
			found = true
			break
		}
	}
	if !found {
		add(current)
	}
	for _, m := range discovered {
		add(strings.TrimSpace(m))
	}
	return options
}
