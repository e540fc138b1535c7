package config

import (
	"fmt"
	"sync"
	"time"
)

// SectionIDCompletion is the identifier for the completion settings section.
const SectionIDCompletion = "completion"

// CompletionSection tunes inline completion behavior.
type CompletionSection struct {
	mu sync.RWMutex

	// BudgetMS bounds how long a completion request may take before its
	// result is discarded. Zero means the engine default.
	BudgetMS int
	// IgnorePatterns extend the built-in filesystem ignore globs.
	IgnorePatterns []string
	// UseModel enables model-derived completion candidates.
	UseModel bool
}

// NewCompletionSection creates a completion section with defaults.
func NewCompletionSection() *CompletionSection {
	return &CompletionSection{}
}

func (s *CompletionSection) ID() string { return SectionIDCompletion }

func (s *CompletionSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patterns := make([]any, len(s.IgnorePatterns))
	for i, p := range s.IgnorePatterns {
		patterns[i] = p
	}
	return map[string]any{
		"budget_ms":       s.BudgetMS,
		"ignore_patterns": patterns,
		"use_model":       s.UseModel,
	}
}

func (s *CompletionSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := data["budget_ms"].(type) {
	case int:
		s.BudgetMS = v
	case float64: // JSON numbers decode as float64
		s.BudgetMS = int(v)
	}
	if v, ok := data["ignore_patterns"].([]any); ok {
		s.IgnorePatterns = s.IgnorePatterns[:0]
		for _, item := range v {
			if p, ok := item.(string); ok {
				s.IgnorePatterns = append(s.IgnorePatterns, p)
			}
		}
	}
	if v, ok := data["use_model"].(bool); ok {
		s.UseModel = v
	}
	return nil
}

func (s *CompletionSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.BudgetMS < 0 {
		return fmt.Errorf("budget_ms must not be negative, got %d", s.BudgetMS)
	}
	return nil
}

// Budget returns the configured budget, or zero when unset.
func (s *CompletionSection) Budget() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.BudgetMS) * time.Millisecond
}

// GetIgnorePatterns returns a copy of the extra ignore globs.
func (s *CompletionSection) GetIgnorePatterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.IgnorePatterns...)
}

// ModelEnabled reports whether model-derived candidates are on.
func (s *CompletionSection) ModelEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UseModel
}
