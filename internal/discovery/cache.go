package discovery

import "sync"

// State is the cached discovery state of one platform.
type State struct {
	Models  []string
	Loading bool
	Error   string
}

type cacheEntry struct {
	state State
	seq   uint64
}

// Cache holds per-platform discovery state. Each call to Begin issues a sequence token;
// Finish only applies results carrying the latest token, so a slow superseded request can
// never overwrite a newer one.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache creates an empty discovery cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

func (c *Cache) entry(platform string) *cacheEntry {
	e, ok := c.entries[platform]
	if !ok {
		e = &cacheEntry{}
		c.entries[platform] = e
	}
	return e
}

// Begin marks platform as loading and returns the token for the new request.
func (c *Cache) Begin(platform string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(platform)
	e.seq++
	e.state.Loading = true
	e.state.Error = ""
	return e.seq
}

// Finish stores the result of the request identified by token. It returns false and
// leaves the state untouched when a newer request has started since.
func (c *Cache) Finish(platform string, token uint64, result Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(platform)
	if token != e.seq {
		return false
	}
	e.state = State{
		Models: append([]string{}, result.Models...),
		Error:  result.Error,
	}
	return true
}

// Get returns a copy of the platform's state.
func (c *Cache) Get(platform string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[platform]
	if !ok {
		return State{}
	}
	s := e.state
	s.Models = append([]string(nil), e.state.Models...)
	return s
}

// ClearError drops the platform's error message, keeping models and any in-flight request.
func (c *Cache) ClearError(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[platform]; ok {
		e.state.Error = ""
	}
}

// Clear resets the platform's state and invalidates in-flight requests.
func (c *Cache) Clear(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(platform)
	e.seq++
	e.state = State{}
}
