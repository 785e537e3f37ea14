package engine

import (
	"context"
	"sync"

	"model_settings/internal/catalog"
	"model_settings/internal/discovery"
	"model_settings/internal/validation"
)

type fakeValidator struct {
	mu       sync.Mutex
	requests []validation.Request
	reject   map[string]string
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{reject: make(map[string]string)}
}

func (v *fakeValidator) Validate(ctx context.Context, req validation.Request) (*validation.Response, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, req)

	if msg, ok := v.reject[req.Platform]; ok {
		resp := &validation.Response{IsValid: true, IsToolCalls: false, Message: msg}
		return resp, &validation.RejectedError{Message: resp.BestMessage(), Response: resp}
	}
	return &validation.Response{IsValid: true, IsToolCalls: true}, nil
}

func (v *fakeValidator) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.requests)
}

type fakeDiscoverer struct {
	mu        sync.Mutex
	results   map[string]discovery.Result
	healthErr map[string]error
	health    []string
	// hook, when set, replaces results and receives the 1-based call number.
	hook  func(call int) discovery.Result
	calls int
}

func newFakeDiscoverer() *fakeDiscoverer {
	return &fakeDiscoverer{
		results:   make(map[string]discovery.Result),
		healthErr: make(map[string]error),
	}
}

func (d *fakeDiscoverer) Discover(ctx context.Context, p catalog.LocalPlatform, ep string) discovery.Result {
	d.mu.Lock()
	d.calls++
	call := d.calls
	hook := d.hook
	result, ok := d.results[p.ID]
	d.mu.Unlock()

	if hook != nil {
		return hook(call)
	}
	if !ok {
		return discovery.Result{Models: []string{}}
	}
	return result
}

func (d *fakeDiscoverer) CheckHealth(ctx context.Context, p catalog.LocalPlatform, ep string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health = append(d.health, ep)
	return d.healthErr[p.ID]
}

type focusCall struct {
	Category Category
	ID       string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	focus   []focusCall
}

func (n *recordingNotifier) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) Focus(category Category, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.focus = append(n.focus, focusCall{Category: category, ID: id})
}

func (n *recordingNotifier) titled(title string) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notice
	for _, notice := range n.notices {
		if notice.Title == title {
			out = append(out, notice)
		}
	}
	return out
}
