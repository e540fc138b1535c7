package config

import (
	"sync"
)

// SectionIDLLM is the identifier for the LLM settings section.
const SectionIDLLM = "llm"

// LLMSection holds model provider settings. Everything is optional; the
// networked agents and model-derived completions simply stay disabled
// until an API key is resolvable.
type LLMSection struct {
	mu sync.RWMutex

	Model   string
	BaseURL string
	APIKey  string
	// CompletionModel, if set, is used for inline completions instead of
	// Model. Smaller and faster is better there.
	CompletionModel string
}

// NewLLMSection creates an empty LLM section.
func NewLLMSection() *LLMSection {
	return &LLMSection{}
}

func (s *LLMSection) ID() string { return SectionIDLLM }

func (s *LLMSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"model":            s.Model,
		"base_url":         s.BaseURL,
		"api_key":          s.APIKey,
		"completion_model": s.CompletionModel,
	}
}

func (s *LLMSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["model"].(string); ok {
		s.Model = v
	}
	if v, ok := data["base_url"].(string); ok {
		s.BaseURL = v
	}
	if v, ok := data["api_key"].(string); ok {
		s.APIKey = v
	}
	if v, ok := data["completion_model"].(string); ok {
		s.CompletionModel = v
	}
	return nil
}

// Validate always passes; missing credentials surface at call time.
func (s *LLMSection) Validate() error {
	return nil
}

func (s *LLMSection) GetModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

func (s *LLMSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BaseURL
}

func (s *LLMSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

func (s *LLMSection) GetCompletionModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CompletionModel
}
