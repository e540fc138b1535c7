package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SectionIDDaemon is the identifier for the daemon settings section.
const SectionIDDaemon = "daemon"

// DaemonSection holds settings shared by the wrapper and the daemon.
type DaemonSection struct {
	mu sync.RWMutex

	SocketPath string
	// SanitizeEgress controls redaction of text leaving the machine.
	// Defaults to on.
	SanitizeEgress bool
}

// NewDaemonSection creates a daemon section with defaults.
func NewDaemonSection() *DaemonSection {
	return &DaemonSection{SanitizeEgress: true}
}

func (s *DaemonSection) ID() string { return SectionIDDaemon }

func (s *DaemonSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"socket_path":     s.SocketPath,
		"sanitize_egress": s.SanitizeEgress,
	}
}

func (s *DaemonSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["socket_path"].(string); ok {
		s.SocketPath = v
	}
	if v, ok := data["sanitize_egress"].(bool); ok {
		s.SanitizeEgress = v
	}
	return nil
}

func (s *DaemonSection) Validate() error {
	return nil
}

// ResolveSocketPath returns the socket path with precedence
// AEGISH_SOCKET > config file > default under the home directory.
func (s *DaemonSection) ResolveSocketPath() (string, error) {
	if env := os.Getenv("AEGISH_SOCKET"); env != "" {
		return env, nil
	}

	s.mu.RLock()
	configured := s.SocketPath
	s.mu.RUnlock()
	if configured != "" {
		return configured, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".aegish", "daemon.sock"), nil
}

// SanitizerEnabled reports whether egress redaction is on.
func (s *DaemonSection) SanitizerEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SanitizeEgress
}
