package config

import (
	"fmt"
	"sync"
)

// Section is one registered settings group. Sections own their typed
// fields; the manager moves untyped data between them and the store.
type Section interface {
	// ID is the stable key the section is stored under.
	ID() string

	// Data returns the section's current values for persistence.
	Data() map[string]any

	// SetData applies loaded values. Unknown keys are ignored.
	SetData(data map[string]any) error

	// Validate checks the current values.
	Validate() error
}

// Manager ties registered sections to a store.
type Manager struct {
	store Store

	mu       sync.RWMutex
	sections map[string]Section
}

// NewManager creates a manager over store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sections: make(map[string]Section),
	}
}

// RegisterSection adds a section. Registering the same id twice is an error.
func (m *Manager) RegisterSection(section Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := section.ID()
	if _, exists := m.sections[id]; exists {
		return fmt.Errorf("section %q already registered", id)
	}
	m.sections[id] = section
	return nil
}

// GetSection returns a registered section by id.
func (m *Manager) GetSection(id string) (Section, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	section, ok := m.sections[id]
	return section, ok
}

// LoadAll loads the store and pushes data into every registered section.
func (m *Manager) LoadAll() error {
	if err := m.store.Load(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, section := range m.sections {
		data, err := m.store.GetSection(id)
		if err != nil {
			return fmt.Errorf("failed to load section %q: %w", id, err)
		}
		if err := section.SetData(data); err != nil {
			return fmt.Errorf("failed to apply section %q: %w", id, err)
		}
		if err := section.Validate(); err != nil {
			return fmt.Errorf("invalid configuration in section %q: %w", id, err)
		}
	}
	return nil
}

// SaveAll pulls data from every section and writes the store.
func (m *Manager) SaveAll() error {
	m.mu.RLock()
	for id, section := range m.sections {
		if err := m.store.SetSection(id, section.Data()); err != nil {
			m.mu.RUnlock()
			return fmt.Errorf("failed to stage section %q: %w", id, err)
		}
	}
	m.mu.RUnlock()
	return m.store.Save()
}
