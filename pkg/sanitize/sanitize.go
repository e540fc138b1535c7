// Package sanitize redacts identifying material from text before it
// crosses a network boundary. It runs on the daemon at egress so no agent
// can forget to apply it.
package sanitize

import (
	"fmt"
	"regexp"
)

// rule pairs a redaction class with its pattern. Rules apply in order;
// earlier rules claim their spans before broader ones see the text.
type rule struct {
	class   string
	pattern *regexp.Regexp
}

var rules = []rule{
	{"pem", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+\b`)},
	{"bearer", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]{16,}=*`)},
	{"aws-key", regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"credential", regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|token|secret|api[_-]?key|access[_-]?key)\s*[=:]\s*\S+`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"mac", regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`)},
	{"ipv6", regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){2,7}[0-9A-Fa-f]{1,4}\b`)},
	{"ipv4", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// Sanitizer rewrites sensitive spans to [REDACTED:<class>] placeholders.
// The zero value redacts; construct with New.
type Sanitizer struct {
	disabled bool
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithDisabled turns the sanitizer into a pass-through, for operators who
// trust their egress path.
func WithDisabled() Option {
	return func(s *Sanitizer) {
		s.disabled = true
	}
}

// New creates a sanitizer.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether redaction is active.
func (s *Sanitizer) Enabled() bool {
	return !s.disabled
}

// Clean returns text with every matched span replaced by its class
// placeholder. Idempotent; placeholders contain nothing any rule matches.
func (s *Sanitizer) Clean(text string) string {
	if s.disabled {
		return text
	}
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, fmt.Sprintf("[REDACTED:%s]", r.class))
	}
	return text
}

// CleanAll applies Clean to each element of texts.
func (s *Sanitizer) CleanAll(texts []string) []string {
	if s.disabled {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = s.Clean(t)
	}
	return out
}
