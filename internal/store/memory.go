package store

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Store operations, used to inject failures into a MemoryStore.
const (
	OpList         = "list"
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpSetPreferred = "prefer"
	OpConfigs      = "configs"
)

// MemoryStore is an in-process ProviderStore. It echoes submitted values back
// unchanged and keeps at most one row preferred.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*ProviderRow
	configs  []ConfigEntry
	failures map[string]error
	calls    map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		rows:     make(map[int64]*ProviderRow),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailNext makes the next call of op return err.
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Calls returns how many times op was invoked.
func (m *MemoryStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// SetConfig stores a user-level configuration value.
func (m *MemoryStore) SetConfig(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.configs {
		if m.configs[i].ConfigName == name {
			m.configs[i].ConfigValue = value
			return
		}
	}
	m.configs = append(m.configs, ConfigEntry{ConfigName: name, ConfigValue: value})
}

func (m *MemoryStore) enter(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]ProviderRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpList); err != nil {
		return nil, err
	}

	rows := make([]ProviderRow, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, cloneRow(row))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m *MemoryStore) Create(ctx context.Context, data ProviderData) (*ProviderRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreate); err != nil {
		return nil, err
	}

	for _, row := range m.rows {
		if row.ProviderName == data.ProviderName {
			return nil, &StatusError{
				StatusCode: http.StatusConflict,
				Message:    fmt.Sprintf("provider %s already exists", data.ProviderName),
			}
		}
	}

	row := &ProviderRow{ID: m.nextID}
	m.nextID++
	applyData(row, data)
	m.rows[row.ID] = row

	out := cloneRow(row)
	return &out, nil
}

func (m *MemoryStore) Update(ctx context.Context, id int64, data ProviderData) (*ProviderRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUpdate); err != nil {
		return nil, err
	}

	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyData(row, data)

	out := cloneRow(row)
	return &out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDelete); err != nil {
		return err
	}

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MemoryStore) SetPreferred(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSetPreferred); err != nil {
		return err
	}

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	for rowID, row := range m.rows {
		row.Prefer = rowID == id
	}
	return nil
}

func (m *MemoryStore) Configs(ctx context.Context) ([]ConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpConfigs); err != nil {
		return nil, err
	}
	return append([]ConfigEntry(nil), m.configs...), nil
}

func applyData(row *ProviderRow, data ProviderData) {
	row.ProviderName = data.ProviderName
	row.APIKey = data.APIKey
	row.EndpointURL = data.EndpointURL
	row.IsValid = data.IsValid
	row.ModelType = data.ModelType
	row.EncryptedConfig = cloneConfig(data.EncryptedConfig)
}

func cloneRow(row *ProviderRow) ProviderRow {
	out := *row
	out.EncryptedConfig = cloneConfig(row.EncryptedConfig)
	return out
}

func cloneConfig(c Config) Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
