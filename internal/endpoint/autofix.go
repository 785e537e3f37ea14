package endpoint

import "sync"

// AutoFixer applies the suffix correction at most once per platform until Reset.
type AutoFixer struct {
	mu       sync.Mutex
	eligible func(platform string) bool
	applied  map[string]bool
}

// NewAutoFixer creates an AutoFixer. eligible selects the platforms the heuristic applies to;
// nil means every platform.
func NewAutoFixer(eligible func(platform string) bool) *AutoFixer {
	return &AutoFixer{
		eligible: eligible,
		applied:  make(map[string]bool),
	}
}

// CanFix reports whether Apply would rewrite endpoint for platform.
func (f *AutoFixer) CanFix(platform, endpoint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canFixLocked(platform, endpoint)
}

func (f *AutoFixer) canFixLocked(platform, endpoint string) bool {
	if f.eligible != nil && !f.eligible(platform) {
		return false
	}
	return !f.applied[platform] && CanAutoFix(endpoint)
}

// Apply rewrites endpoint when allowed and marks the platform as fixed.
// The bool result is true only for the call that performed the fix.
func (f *AutoFixer) Apply(platform, endpoint string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.canFixLocked(platform, endpoint) {
		return endpoint, false
	}
	f.applied[platform] = true
	return AppendSuffix(endpoint), true
}

// Applied reports whether the fix already fired for platform.
func (f *AutoFixer) Applied(platform string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied[platform]
}

// Reset re-arms the fix for platform.
func (f *AutoFixer) Reset(platform string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.applied, platform)
}
