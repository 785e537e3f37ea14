// Package engine holds the working configuration of every model backend candidate and
// decides which single one is the default.
package engine

import (
	"context"
	"sync"

	"model_settings/internal/catalog"
	"model_settings/internal/discovery"
	"model_settings/internal/endpoint"
	"model_settings/internal/store"
	"model_settings/internal/validation"
)

// Candidate is the working configuration of one bring-your-own-key vendor.
type Candidate struct {
	ID             string
	Name           string
	APIKey         string
	APIHost        string
	ModelType      string
	ExternalConfig []catalog.ExternalField
	// ProviderID is the persisted row id; zero means not configured.
	ProviderID int64
	IsValid    bool
	// Prefer is derived from the engine's Selection.
	Prefer bool
}

// LocalConfig is the working configuration of one local platform.
type LocalConfig struct {
	Platform   string
	Endpoint   string
	ModelType  string
	ProviderID int64
	Prefer     bool
}

// Summary describes the default backend.
type Summary struct {
	Category  Category
	ID        string
	Name      string
	ModelType string
}

// Discoverer lists models of local servers and checks their health.
type Discoverer interface {
	Discover(ctx context.Context, platform catalog.LocalPlatform, endpoint string) discovery.Result
	CheckHealth(ctx context.Context, platform catalog.LocalPlatform, endpoint string) error
}

// Options configures an Engine.
type Options struct {
	// CloudAvailable is false in deployments without the managed cloud backend.
	CloudAvailable bool
	Notifier       Notifier
}

// Engine is safe for concurrent use. Network calls are made without holding the lock,
// so other candidates stay editable while one is being saved.
type Engine struct {
	store     store.ProviderStore
	validator validation.Validator
	discover  Discoverer
	notifier  Notifier
	cloudOK   bool

	mu         sync.Mutex
	order      []string
	candidates map[string]*Candidate
	locals     map[string]*LocalConfig
	errors     map[string]FieldErrors
	localError map[string]string
	busy       map[string]bool
	selection  Selection
	pending    *PendingDefault
	cloudModel string
	// suppressed holds provider rows switched off locally; reconcile ignores their
	// server-side prefer flag until another promotion happens.
	suppressed map[int64]bool
	// serverPreferred is the set of rows the last fetched list flagged as preferred.
	serverPreferred []int64

	fixer  *endpoint.AutoFixer
	models *discovery.Cache
}

// New creates an engine seeded from the static catalog.
func New(providerStore store.ProviderStore, validator validation.Validator, discoverer Discoverer, opts Options) *Engine {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	e := &Engine{
		store:      providerStore,
		validator:  validator,
		discover:   discoverer,
		notifier:   opts.Notifier,
		cloudOK:    opts.CloudAvailable,
		candidates: make(map[string]*Candidate),
		locals:     make(map[string]*LocalConfig),
		errors:     make(map[string]FieldErrors),
		localError: make(map[string]string),
		busy:       make(map[string]bool),
		suppressed: make(map[int64]bool),
		models:     discovery.NewCache(),
	}
	e.fixer = endpoint.NewAutoFixer(func(platform string) bool {
		p, ok := catalog.LocalPlatformByID(platform)
		return ok && p.AutoFixSuffix
	})

	for _, v := range catalog.Vendors() {
		e.order = append(e.order, v.ID)
		e.candidates[v.ID] = &Candidate{
			ID:             v.ID,
			Name:           v.Name,
			APIHost:        v.DefaultHost,
			ExternalConfig: v.ExternalConfig,
		}
	}
	for _, p := range catalog.LocalPlatforms() {
		e.locals[p.ID] = &LocalConfig{Platform: p.ID, Endpoint: p.DefaultEndpoint}
	}
	return e
}

func key(category Category, id string) string {
	return string(category) + ":" + id
}

// Candidates returns a copy of every custom candidate in catalog order.
func (e *Engine) Candidates() []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Candidate, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.candidateCopy(e.candidates[id]))
	}
	return out
}

// Candidate returns a copy of one custom candidate.
func (e *Engine) Candidate(id string) (Candidate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.candidates[id]
	if !ok {
		return Candidate{}, false
	}
	return e.candidateCopy(c), true
}

func (e *Engine) candidateCopy(c *Candidate) Candidate {
	out := *c
	out.ExternalConfig = catalog.CloneFields(c.ExternalConfig)
	out.Prefer = e.selection == CustomSelection(c.ID)
	return out
}

// Locals returns a copy of every local platform configuration in catalog order.
func (e *Engine) Locals() []LocalConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	platforms := catalog.LocalPlatforms()
	out := make([]LocalConfig, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, e.localCopy(e.locals[p.ID]))
	}
	return out
}

// Local returns a copy of one local platform configuration.
func (e *Engine) Local(platform string) (LocalConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locals[platform]
	if !ok {
		return LocalConfig{}, false
	}
	return e.localCopy(l), true
}

func (e *Engine) localCopy(l *LocalConfig) LocalConfig {
	out := *l
	out.Prefer = e.selection == LocalSelection(l.Platform)
	return out
}

// Selection returns the current default backend.
func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Mode is the category of the current selection, empty when nothing is selected.
func (e *Engine) Mode() Category {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection.Category
}

// CloudPrefer reports whether the managed cloud backend is the default.
func (e *Engine) CloudPrefer() bool {
	return e.Selection().Category == CategoryCloud
}

// LocalPrefer reports whether some local platform is the default, and which.
func (e *Engine) LocalPrefer() (bool, string) {
	sel := e.Selection()
	if sel.Category != CategoryLocal {
		return false, ""
	}
	return true, sel.ID
}

// LocalEnabled is false exactly while a custom candidate is the active selection.
func (e *Engine) LocalEnabled() bool {
	return e.Selection().Category != CategoryCustom
}

// CloudModel returns the chosen cloud model id.
func (e *Engine) CloudModel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cloudModel
}

// Pending returns the pending default marker, or nil.
func (e *Engine) Pending() *PendingDefault {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return nil
	}
	p := *e.pending
	return &p
}

// RestorePending reinstates a marker persisted by a previous session.
func (e *Engine) RestorePending(p *PendingDefault) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		e.pending = nil
		return
	}
	cp := *p
	e.pending = &cp
}

// ClearPending abandons a pending promotion.
func (e *Engine) ClearPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

// FieldErrors returns the field errors of a candidate.
func (e *Engine) FieldErrors(category Category, id string) FieldErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors[key(category, id)].clone()
}

// LocalError returns the last save error of a local platform.
func (e *Engine) LocalError(platform string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localError[platform]
}

// Busy reports whether a save or reset of the candidate is in flight.
func (e *Engine) Busy(category Category, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy[key(category, id)]
}

// Configured reports whether the candidate can be promoted without configuring it first.
func (e *Engine) Configured(category Category, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configuredLocked(category, id)
}

func (e *Engine) configuredLocked(category Category, id string) bool {
	switch category {
	case CategoryCloud:
		return e.cloudOK
	case CategoryCustom:
		c, ok := e.candidates[id]
		return ok && c.ProviderID != 0
	case CategoryLocal:
		l, ok := e.locals[id]
		return ok && l.ProviderID != 0
	}
	return false
}

// Default describes the current default backend. ok is false when none is selected.
func (e *Engine) Default() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel := e.selection
	switch sel.Category {
	case CategoryCloud:
		return Summary{
			Category:  CategoryCloud,
			ID:        e.cloudModel,
			Name:      catalog.CloudModelName(e.cloudModel),
			ModelType: e.cloudModel,
		}, true
	case CategoryCustom:
		c := e.candidates[sel.ID]
		return Summary{Category: CategoryCustom, ID: c.ID, Name: c.Name, ModelType: c.ModelType}, true
	case CategoryLocal:
		l := e.locals[sel.ID]
		name := sel.ID
		if p, ok := catalog.LocalPlatformByID(sel.ID); ok {
			name = p.Name
		}
		return Summary{Category: CategoryLocal, ID: sel.ID, Name: name, ModelType: l.ModelType}, true
	}
	return Summary{}, false
}

// acquire marks a candidate busy. The caller must hold e.mu.
func (e *Engine) acquire(category Category, id string) error {
	k := key(category, id)
	if e.busy[k] {
		return ErrBusy
	}
	e.busy[k] = true
	return nil
}

func (e *Engine) release(category Category, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, key(category, id))
}
