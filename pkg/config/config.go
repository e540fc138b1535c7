package config

import (
	"sync"
)

var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates the global manager with the standard sections and
// loads the config file. Call once at startup; an empty path uses the
// default location.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	for _, section := range []Section{
		NewLLMSection(),
		NewDaemonSection(),
		NewCompletionSection(),
	} {
		if err := manager.RegisterSection(section); err != nil {
			return err
		}
	}

	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global manager. Panics before Initialize.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized reports whether Initialize has run.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetLLM returns the LLM section, or nil before initialization.
func GetLLM() *LLMSection {
	return sectionAs[*LLMSection](SectionIDLLM)
}

// GetDaemon returns the daemon section, or nil before initialization.
func GetDaemon() *DaemonSection {
	return sectionAs[*DaemonSection](SectionIDDaemon)
}

// GetCompletion returns the completion section, or nil before initialization.
func GetCompletion() *CompletionSection {
	return sectionAs[*CompletionSection](SectionIDCompletion)
}

func sectionAs[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}
	section, ok := Global().GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}
