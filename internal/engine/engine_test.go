package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model_settings/internal/catalog"
	"model_settings/internal/discovery"
	"model_settings/internal/store"
)

type harness struct {
	engine    *Engine
	store     *store.MemoryStore
	validator *fakeValidator
	discover  *fakeDiscoverer
	notifier  *recordingNotifier
}

func newHarness(t *testing.T, cloud bool) *harness {
	t.Helper()
	h := &harness{
		store:     store.NewMemoryStore(),
		validator: newFakeValidator(),
		discover:  newFakeDiscoverer(),
		notifier:  &recordingNotifier{},
	}
	h.store.SetConfig(SearchAPIKeyConfig, "key")
	h.store.SetConfig(SearchEngineIDConfig, "cx")
	h.engine = New(h.store, h.validator, h.discover, Options{CloudAvailable: cloud, Notifier: h.notifier})
	return h
}

func (h *harness) fillCustom(t *testing.T, id, apiKey, host, model string) {
	t.Helper()
	require.NoError(t, h.engine.SetCustomField(id, FieldAPIKey, apiKey))
	require.NoError(t, h.engine.SetCustomField(id, FieldAPIHost, host))
	require.NoError(t, h.engine.SetCustomField(id, FieldModelType, model))
}

func (h *harness) saveCustom(t *testing.T, id string) {
	t.Helper()
	h.fillCustom(t, id, "sk-"+id, "https://api."+id+".example/v1", id+"-model")
	require.NoError(t, h.engine.SaveCustom(context.Background(), id))
}

func (h *harness) saveLocal(t *testing.T, platform, ep, model string) {
	t.Helper()
	require.NoError(t, h.engine.SetLocalEndpoint(platform, ep))
	require.NoError(t, h.engine.SetLocalModelType(platform, model))
	require.NoError(t, h.engine.SaveLocal(context.Background(), platform))
}

// preferredCount counts preferred flags across cloud, every vendor and every platform.
func preferredCount(e *Engine) int {
	n := 0
	if e.CloudPrefer() {
		n++
	}
	for _, c := range e.Candidates() {
		if c.Prefer {
			n++
		}
	}
	for _, l := range e.Locals() {
		if l.Prefer {
			n++
		}
	}
	return n
}

func TestSaveCustom_HappyPath(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.fillCustom(t, "openai", "sk-1", "https://api.vendor.com", "big-model")
	require.NoError(t, h.engine.SaveCustom(ctx, "openai"))

	assert.Equal(t, 1, h.store.Calls(store.OpCreate))
	assert.Equal(t, 0, h.store.Calls(store.OpUpdate))
	assert.GreaterOrEqual(t, h.store.Calls(store.OpList), 1)
	assert.Equal(t, 0, h.store.Calls(store.OpSetPreferred))

	c, ok := h.engine.Candidate("openai")
	require.True(t, ok)
	assert.NotZero(t, c.ProviderID)
	assert.True(t, c.IsValid)
	assert.False(t, c.Prefer)

	require.Len(t, h.validator.requests, 1)
	assert.Equal(t, "openai", h.validator.requests[0].Platform)
	assert.Equal(t, "sk-1", h.validator.requests[0].APIKey)
	assert.Len(t, h.notifier.titled(titleValidateSuccess), 1)
}

func TestSaveCustom_RoundTrip(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.fillCustom(t, "azure", "az-key", "https://my.openai.azure.com", "gpt-4o")
	require.NoError(t, h.engine.SetExternalValue("azure", "api_version", "2024-10-21"))
	require.NoError(t, h.engine.SaveCustom(ctx, "azure"))

	before, _ := h.engine.Candidate("azure")

	// Scramble the working copy, then reconcile with the store.
	h.fillCustom(t, "azure", "other", "https://other", "other")
	require.NoError(t, h.engine.Refresh(ctx))

	after, _ := h.engine.Candidate("azure")
	assert.Equal(t, "az-key", after.APIKey)
	assert.Equal(t, "https://my.openai.azure.com", after.APIHost)
	assert.Equal(t, "gpt-4o", after.ModelType)
	assert.Equal(t, before.ProviderID, after.ProviderID)

	var version string
	for _, f := range after.ExternalConfig {
		if f.Key == "api_version" {
			version = f.Value
		}
	}
	assert.Equal(t, "2024-10-21", version)

	// A second save updates the existing row.
	require.NoError(t, h.engine.SaveCustom(ctx, "azure"))
	assert.Equal(t, 1, h.store.Calls(store.OpCreate))
	assert.Equal(t, 1, h.store.Calls(store.OpUpdate))
}

func TestSaveCustom_FieldErrors(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.engine.SetCustomField("openai", FieldAPIHost, ""))
	err := h.engine.SaveCustom(context.Background(), "openai")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var fieldErrs FieldErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Contains(t, fieldErrs, FieldAPIKey)
	assert.Contains(t, fieldErrs, FieldAPIHost)
	assert.Contains(t, fieldErrs, FieldModelType)

	assert.Equal(t, 0, h.validator.count())
	assert.Equal(t, 0, h.store.Calls(store.OpCreate))

	require.NoError(t, h.engine.SetCustomField("openai", FieldAPIKey, "sk"))
	remaining := h.engine.FieldErrors(CategoryCustom, "openai")
	assert.NotContains(t, remaining, FieldAPIKey)
	assert.Contains(t, remaining, FieldModelType)
}

func TestSaveCustom_ValidationRejected(t *testing.T) {
	h := newHarness(t, true)
	h.validator.reject["openai"] = "model does not support tool calls"

	h.fillCustom(t, "openai", "sk-1", "https://api.openai.com/v1", "tiny")
	err := h.engine.SaveCustom(context.Background(), "openai")
	require.Error(t, err)

	assert.Equal(t, "model does not support tool calls", h.engine.FieldErrors(CategoryCustom, "openai")[FieldAPIKey])
	assert.Equal(t, 0, h.store.Calls(store.OpCreate))

	c, _ := h.engine.Candidate("openai")
	assert.Zero(t, c.ProviderID)
}

func TestSaveCustom_UnknownCandidate(t *testing.T) {
	h := newHarness(t, true)
	err := h.engine.SaveCustom(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownCandidate)
}

func TestSetDefault_PromotionGateThenCompletion(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	require.NoError(t, h.engine.SetDefault(ctx, CategoryLocal, catalog.VLLM))

	assert.Equal(t, 0, preferredCount(h.engine))
	assert.True(t, h.engine.Selection().IsNone())
	assert.Equal(t, &PendingDefault{Category: CategoryLocal, ID: catalog.VLLM}, h.engine.Pending())
	assert.Equal(t, []focusCall{{Category: CategoryLocal, ID: catalog.VLLM}}, h.notifier.focus)
	assert.Equal(t, 0, h.store.Calls(store.OpSetPreferred))

	h.saveLocal(t, catalog.VLLM, "http://gpu-box:8000/v1", "qwen2.5-coder")

	assert.Nil(t, h.engine.Pending())
	prefer, platform := h.engine.LocalPrefer()
	assert.True(t, prefer)
	assert.Equal(t, catalog.VLLM, platform)
	assert.Equal(t, 1, preferredCount(h.engine))
	assert.True(t, h.engine.LocalEnabled())

	rows, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Prefer)
	assert.Equal(t, "vllm", rows[0].EncryptedConfig["model_platform"])
	assert.Equal(t, catalog.NotRequiredKey, rows[0].APIKey)
}

func TestSave_DoesNotPromoteWithoutPendingMarker(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))

	h.saveCustom(t, "deepseek")
	assert.Equal(t, CustomSelection("openai"), h.engine.Selection())

	// A pending marker for a different candidate is not consumed.
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "mistral"))
	h.saveCustom(t, "grok")
	assert.Equal(t, &PendingDefault{Category: CategoryCustom, ID: "mistral"}, h.engine.Pending())
	assert.Equal(t, CustomSelection("openai"), h.engine.Selection())
}

func TestSetDefault_PreferFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	h.saveLocal(t, catalog.Ollama, "http://localhost:11434/v1", "llama3.1")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))

	h.store.FailNext(store.OpSetPreferred, errors.New("database unavailable"))
	err := h.engine.SetDefault(ctx, CategoryLocal, catalog.Ollama)
	require.Error(t, err)

	assert.Equal(t, CustomSelection("openai"), h.engine.Selection())
	c, _ := h.engine.Candidate("openai")
	assert.True(t, c.Prefer)
	l, _ := h.engine.Local(catalog.Ollama)
	assert.False(t, l.Prefer)
	assert.False(t, h.engine.LocalEnabled())
	assert.Len(t, h.notifier.titled(titleDefaultFailed), 1)
}

func TestSetDefault_SwitchesBetweenCategories(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	h.saveLocal(t, catalog.LMStudio, "http://localhost:1234/v1", "phi-4")

	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))
	assert.False(t, h.engine.LocalEnabled())

	require.NoError(t, h.engine.SetDefault(ctx, CategoryLocal, catalog.LMStudio))
	assert.Equal(t, LocalSelection(catalog.LMStudio), h.engine.Selection())
	assert.True(t, h.engine.LocalEnabled())
	c, _ := h.engine.Candidate("openai")
	assert.False(t, c.Prefer)

	require.NoError(t, h.engine.SetDefault(ctx, CategoryCloud, "gpt-5"))
	assert.True(t, h.engine.CloudPrefer())
	assert.Equal(t, "gpt-5", h.engine.CloudModel())
	assert.Equal(t, 1, preferredCount(h.engine))

	summary, ok := h.engine.Default()
	require.True(t, ok)
	assert.Equal(t, Summary{Category: CategoryCloud, ID: "gpt-5", Name: "GPT-5", ModelType: "gpt-5"}, summary)

	// Cloud survives a refresh even though the store still prefers the local row.
	require.NoError(t, h.engine.Refresh(ctx))
	assert.True(t, h.engine.CloudPrefer())
}

func TestSetDefault_CloudUnavailable(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.engine.SetDefault(context.Background(), CategoryCloud, ""))
	assert.False(t, h.engine.CloudPrefer())
	assert.Equal(t, &PendingDefault{Category: CategoryCloud}, h.engine.Pending())
	assert.False(t, h.engine.Configured(CategoryCloud, ""))
}

func TestSetDefault_SearchAdvisory(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.saveCustom(t, "openai")

	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))
	assert.Empty(t, h.notifier.titled(titleSearchMissing))

	bare := newHarness(t, true)
	bare.store = store.NewMemoryStore()
	bare.engine = New(bare.store, bare.validator, bare.discover, Options{CloudAvailable: true, Notifier: bare.notifier})
	bare.saveCustom(t, "openai")

	require.NoError(t, bare.engine.SetDefault(ctx, CategoryCustom, "openai"))
	assert.Len(t, bare.notifier.titled(titleSearchMissing), 1)
	assert.Equal(t, CustomSelection("openai"), bare.engine.Selection())

	// A failing configs read warns but does not block.
	bare.saveCustom(t, "deepseek")
	bare.store.FailNext(store.OpConfigs, errors.New("offline"))
	require.NoError(t, bare.engine.SetDefault(ctx, CategoryCustom, "deepseek"))
	assert.Equal(t, CustomSelection("deepseek"), bare.engine.Selection())
}

func TestUnsetDefault_SurvivesRefresh(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))

	require.NoError(t, h.engine.UnsetDefault(CategoryCustom, "openai"))
	assert.True(t, h.engine.Selection().IsNone())
	assert.True(t, h.engine.LocalEnabled())

	require.NoError(t, h.engine.Refresh(ctx))
	assert.True(t, h.engine.Selection().IsNone())

	// Unsetting something that is not the default is a no-op.
	h.saveCustom(t, "deepseek")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "deepseek"))
	require.NoError(t, h.engine.UnsetDefault(CategoryCustom, "openai"))
	assert.Equal(t, CustomSelection("deepseek"), h.engine.Selection())
}

func TestUnsetDefault_SurvivesResetOfOtherCandidates(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))
	h.saveLocal(t, catalog.VLLM, "http://gpu:8000/v1", "qwen")
	h.saveCustom(t, "deepseek")

	require.NoError(t, h.engine.UnsetDefault(CategoryCustom, "openai"))

	require.NoError(t, h.engine.ResetLocal(ctx, catalog.VLLM))
	assert.True(t, h.engine.Selection().IsNone(), "got %s", h.engine.Selection())

	require.NoError(t, h.engine.DeleteCustom(ctx, "deepseek"))
	assert.True(t, h.engine.Selection().IsNone(), "got %s", h.engine.Selection())

	// The switched-off row is still preferred on the server.
	openai, _ := h.engine.Candidate("openai")
	assert.Equal(t, []int64{openai.ProviderID}, h.engine.Suppressed())

	// Deleting the switched-off row itself drops its suppression.
	require.NoError(t, h.engine.DeleteCustom(ctx, "openai"))
	assert.Empty(t, h.engine.Suppressed())
}

func TestUnsetDefault_CloudDoesNotRevivePreviousRow(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCloud, ""))
	require.NoError(t, h.engine.UnsetDefault(CategoryCloud, ""))
	assert.True(t, h.engine.Selection().IsNone())

	h.saveCustom(t, "deepseek")
	assert.True(t, h.engine.Selection().IsNone(), "got %s", h.engine.Selection())

	// An explicit promotion lifts every switch-off.
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "deepseek"))
	assert.Equal(t, CustomSelection("deepseek"), h.engine.Selection())
	assert.Empty(t, h.engine.Suppressed())
}

func TestRestoreSuppressed_AppliesOnLoad(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))
	require.NoError(t, h.engine.UnsetDefault(CategoryCustom, "openai"))
	saved := h.engine.Suppressed()
	require.Len(t, saved, 1)

	next := New(h.store, h.validator, h.discover, Options{CloudAvailable: true})
	next.RestoreSuppressed(saved)
	require.NoError(t, next.Load(ctx, ""))
	assert.True(t, next.Selection().IsNone())

	// Loading in cloud mode hides the row the store still prefers.
	cloud := New(h.store, h.validator, h.discover, Options{CloudAvailable: true})
	require.NoError(t, cloud.Load(ctx, CategoryCloud))
	assert.Equal(t, saved, cloud.Suppressed())
}

func TestBlurLocalEndpoint_AutoFixFiresOnce(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.engine.SetLocalEndpoint(catalog.Ollama, "http://localhost:11434"))
	fixed, err := h.engine.BlurLocalEndpoint(catalog.Ollama)
	require.NoError(t, err)
	assert.True(t, fixed)

	l, _ := h.engine.Local(catalog.Ollama)
	assert.Equal(t, "http://localhost:11434/v1", l.Endpoint)
	assert.Len(t, h.notifier.titled(titleEndpointFixed), 1)

	fixed, err = h.engine.BlurLocalEndpoint(catalog.Ollama)
	require.NoError(t, err)
	assert.False(t, fixed)

	// Even re-entering the host-only address does not fire again this session.
	require.NoError(t, h.engine.SetLocalEndpoint(catalog.Ollama, "http://localhost:11434"))
	fixed, _ = h.engine.BlurLocalEndpoint(catalog.Ollama)
	assert.False(t, fixed)
	assert.Len(t, h.notifier.titled(titleEndpointFixed), 1)

	// Custom paths are never rewritten and other platforms are not eligible.
	require.NoError(t, h.engine.ResetLocal(context.Background(), catalog.Ollama))
	require.NoError(t, h.engine.SetLocalEndpoint(catalog.Ollama, "http://localhost:11434/custom/path"))
	fixed, _ = h.engine.BlurLocalEndpoint(catalog.Ollama)
	assert.False(t, fixed)

	require.NoError(t, h.engine.SetLocalEndpoint(catalog.VLLM, "http://localhost:8000"))
	fixed, _ = h.engine.BlurLocalEndpoint(catalog.VLLM)
	assert.False(t, fixed)
}

func TestSaveLocal_AutoFixesOnSave(t *testing.T) {
	h := newHarness(t, true)

	h.saveLocal(t, catalog.Ollama, "http://localhost:11434", "llama3.1")

	require.Len(t, h.validator.requests, 1)
	assert.Equal(t, "http://localhost:11434/v1", h.validator.requests[0].URL)
	assert.Equal(t, catalog.NotRequiredKey, h.validator.requests[0].APIKey)
	assert.Len(t, h.notifier.titled(titleEndpointFixed), 1)

	l, _ := h.engine.Local(catalog.Ollama)
	assert.Equal(t, "http://localhost:11434/v1", l.Endpoint)
	assert.NotZero(t, l.ProviderID)
}

func TestSaveLocal_LlamaCppUsesHealthCheck(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.discover.healthErr[catalog.LlamaCpp] = &discovery.HealthError{Platform: catalog.LlamaCpp, Message: "llama-server is down"}
	require.NoError(t, h.engine.SetLocalModelType(catalog.LlamaCpp, "gemma-3"))

	err := h.engine.SaveLocal(ctx, catalog.LlamaCpp)
	require.Error(t, err)
	assert.Equal(t, "llama-server is down", h.engine.LocalError(catalog.LlamaCpp))
	assert.Equal(t, 0, h.store.Calls(store.OpCreate))
	assert.Equal(t, 0, h.validator.count())

	delete(h.discover.healthErr, catalog.LlamaCpp)
	require.NoError(t, h.engine.SaveLocal(ctx, catalog.LlamaCpp))
	assert.Equal(t, 0, h.validator.count())
	assert.Equal(t, 1, h.store.Calls(store.OpCreate))
	assert.Empty(t, h.engine.LocalError(catalog.LlamaCpp))
}

func TestSaveLocal_FieldErrors(t *testing.T) {
	h := newHarness(t, true)

	// vllm has no default endpoint.
	err := h.engine.SaveLocal(context.Background(), catalog.VLLM)
	var fieldErrs FieldErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Contains(t, fieldErrs, FieldEndpoint)
	assert.Contains(t, fieldErrs, FieldModelType)
	assert.Equal(t, 0, h.validator.count())
}

func TestDeleteCustom(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.saveCustom(t, "openai")
	h.saveCustom(t, "deepseek")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryCustom, "openai"))

	h.store.FailNext(store.OpDelete, errors.New("boom"))
	require.Error(t, h.engine.DeleteCustom(ctx, "openai"))
	c, _ := h.engine.Candidate("openai")
	assert.NotZero(t, c.ProviderID)
	assert.True(t, c.Prefer)

	require.NoError(t, h.engine.DeleteCustom(ctx, "openai"))
	c, _ = h.engine.Candidate("openai")
	assert.Zero(t, c.ProviderID)
	assert.Empty(t, c.APIKey)
	assert.Empty(t, c.ModelType)
	assert.False(t, c.IsValid)
	assert.False(t, c.Prefer)
	assert.Equal(t, "https://api.openai.com/v1", c.APIHost)
	assert.True(t, h.engine.Selection().IsNone())

	other, _ := h.engine.Candidate("deepseek")
	assert.NotZero(t, other.ProviderID)
	assert.Equal(t, "sk-deepseek", other.APIKey)
}

func TestResetLocal(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.discover.results[catalog.Ollama] = discovery.Result{Models: []string{"llama3.1"}}

	h.saveLocal(t, catalog.Ollama, "http://gpu:11434/v1", "llama3.1")
	require.NoError(t, h.engine.SetDefault(ctx, CategoryLocal, catalog.Ollama))

	require.NoError(t, h.engine.Reset(ctx, CategoryLocal, catalog.Ollama))

	l, _ := h.engine.Local(catalog.Ollama)
	assert.Equal(t, "http://localhost:11434/v1", l.Endpoint)
	assert.Empty(t, l.ModelType)
	assert.Zero(t, l.ProviderID)
	assert.False(t, l.Prefer)
	assert.True(t, h.engine.Selection().IsNone())
	assert.Equal(t, []string{"llama3.1"}, h.engine.Models(catalog.Ollama).Models)

	rows, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoad_HydratesFromStore(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.store.Create(ctx, store.ProviderData{
		ProviderName: "openai-compatible-model",
		APIKey:       catalog.NotRequiredKey,
		EndpointURL:  "http://localhost:8080/v1",
		IsValid:      true,
		ModelType:    "ignored",
		EncryptedConfig: store.Config{
			"model_platform": catalog.LlamaCpp,
			"model_type":     "gemma-3",
		},
	})
	require.NoError(t, err)
	row, err := h.store.Create(ctx, store.ProviderData{ProviderName: "anthropic", APIKey: "sk-ant", ModelType: "claude"})
	require.NoError(t, err)
	require.NoError(t, h.store.SetPreferred(ctx, row.ID))
	h.discover.results[catalog.Ollama] = discovery.Result{Models: []string{}, Error: "Failed to fetch Ollama models. Is Ollama running?"}

	require.NoError(t, h.engine.Load(ctx, CategoryCustom))

	l, _ := h.engine.Local(catalog.LlamaCpp)
	assert.NotZero(t, l.ProviderID)
	assert.Equal(t, "gemma-3", l.ModelType)

	c, _ := h.engine.Candidate("anthropic")
	assert.Equal(t, "https://api.anthropic.com/v1/", c.APIHost)
	assert.True(t, c.Prefer)
	assert.Equal(t, CategoryCustom, h.engine.Mode())

	assert.Equal(t, "Failed to fetch Ollama models. Is Ollama running?", h.engine.Models(catalog.Ollama).Error)

	// The application mode wins for cloud.
	cloud := newHarness(t, true)
	cloud.store = h.store
	cloud.engine = New(h.store, cloud.validator, cloud.discover, Options{CloudAvailable: true})
	require.NoError(t, cloud.engine.Load(ctx, CategoryCloud))
	assert.True(t, cloud.engine.CloudPrefer())
	assert.Equal(t, 1, preferredCount(cloud.engine))
}

func TestLoad_StoreFailure(t *testing.T) {
	h := newHarness(t, true)
	h.store.FailNext(store.OpList, errors.New("offline"))

	require.Error(t, h.engine.Load(context.Background(), ""))
	assert.Len(t, h.notifier.titled(titleRefreshFailed), 1)
}

func TestRefreshModels_StaleResultDiscarded(t *testing.T) {
	h := newHarness(t, true)
	release := make(chan struct{})
	started := make(chan struct{})

	h.discover.hook = func(call int) discovery.Result {
		if call == 1 {
			close(started)
			<-release
			return discovery.Result{Models: []string{}, Error: "stale failure"}
		}
		return discovery.Result{Models: []string{"fresh"}}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.engine.RefreshModels(context.Background(), catalog.Ollama)
	}()
	<-started

	state := h.engine.RefreshModels(context.Background(), catalog.Ollama)
	assert.Equal(t, []string{"fresh"}, state.Models)

	close(release)
	wg.Wait()

	state = h.engine.Models(catalog.Ollama)
	assert.Equal(t, []string{"fresh"}, state.Models)
	assert.Empty(t, state.Error)
	assert.False(t, state.Loading)
}

func TestModelOptions(t *testing.T) {
	h := newHarness(t, true)
	h.discover.results[catalog.Ollama] = discovery.Result{Models: []string{"a", "", "b", "a"}}
	h.engine.RefreshModels(context.Background(), catalog.Ollama)

	assert.Equal(t, []string{"a", "b"}, h.engine.ModelOptions(catalog.Ollama))

	require.NoError(t, h.engine.SetLocalModelType(catalog.Ollama, "custom"))
	assert.Equal(t, []string{"custom", "a", "b"}, h.engine.ModelOptions(catalog.Ollama))

	require.NoError(t, h.engine.SetLocalModelType(catalog.Ollama, "b"))
	assert.Equal(t, []string{"a", "b"}, h.engine.ModelOptions(catalog.Ollama))
}

func TestSetLocalEndpoint_ClearsErrors(t *testing.T) {
	h := newHarness(t, true)
	h.discover.results[catalog.Ollama] = discovery.Result{Models: []string{}, Error: "down"}
	h.engine.RefreshModels(context.Background(), catalog.Ollama)
	require.Equal(t, "down", h.engine.Models(catalog.Ollama).Error)

	require.NoError(t, h.engine.SetLocalEndpoint(catalog.Ollama, "http://other:11434/v1"))
	assert.Empty(t, h.engine.Models(catalog.Ollama).Error)
}

func TestExclusivity_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	customs := []string{"openai", "deepseek", "azure"}
	locals := []string{catalog.Ollama, catalog.VLLM, catalog.LlamaCpp}
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		h := newHarness(t, rng.Intn(2) == 0)

		for step := 0; step < 40; step++ {
			switch rng.Intn(7) {
			case 0:
				id := customs[rng.Intn(len(customs))]
				h.fillCustom(t, id, "sk", "https://host/v1", "m")
				_ = h.engine.SaveCustom(ctx, id)
			case 1:
				p := locals[rng.Intn(len(locals))]
				_ = h.engine.SetLocalEndpoint(p, "http://host:9000/v1")
				_ = h.engine.SetLocalModelType(p, "m")
				_ = h.engine.SaveLocal(ctx, p)
			case 2:
				_ = h.engine.SetDefault(ctx, CategoryCustom, customs[rng.Intn(len(customs))])
			case 3:
				_ = h.engine.SetDefault(ctx, CategoryLocal, locals[rng.Intn(len(locals))])
			case 4:
				_ = h.engine.SetDefault(ctx, CategoryCloud, "")
			case 5:
				if rng.Intn(2) == 0 {
					_ = h.engine.Reset(ctx, CategoryCustom, customs[rng.Intn(len(customs))])
				} else {
					_ = h.engine.Reset(ctx, CategoryLocal, locals[rng.Intn(len(locals))])
				}
			case 6:
				h.store.FailNext(store.OpSetPreferred, errors.New("flaky"))
				_ = h.engine.SetDefault(ctx, CategoryCustom, customs[rng.Intn(len(customs))])
			}

			require.LessOrEqual(t, preferredCount(h.engine), 1, "round %d step %d", round, step)
			sel := h.engine.Selection()
			if sel.Category == CategoryCustom || sel.Category == CategoryLocal {
				require.True(t, h.engine.Configured(sel.Category, sel.ID), "selected %s is not configured", sel)
			}
		}
	}
}

func TestBusyCandidateRejectsReentry(t *testing.T) {
	h := newHarness(t, true)
	h.fillCustom(t, "openai", "sk", "https://h/v1", "m")

	h.engine.mu.Lock()
	require.NoError(t, h.engine.acquire(CategoryCustom, "openai"))
	h.engine.mu.Unlock()

	assert.ErrorIs(t, h.engine.SaveCustom(context.Background(), "openai"), ErrBusy)
	assert.True(t, h.engine.Busy(CategoryCustom, "openai"))

	// Other candidates are unaffected.
	h.fillCustom(t, "deepseek", "sk", "https://h/v1", "m")
	assert.NoError(t, h.engine.SaveCustom(context.Background(), "deepseek"))
}
