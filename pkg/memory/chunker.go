// Package memory is the daemon-side retrieval store: session-scoped,
// append-only, in-memory vectors over captured command transcripts.
package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// chunkTokens is the target chunk size in tokens.
	chunkTokens = 200
	// chunkOverlap carries trailing context into the next chunk.
	chunkOverlap = 40
)

// Chunker splits transcript text into overlapping token windows. It uses
// the cl100k_base encoding when available and falls back to a rune window
// of equivalent size when the encoding cannot be loaded.
type Chunker struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewChunker creates a chunker. Encoding load is deferred to first use.
func NewChunker() *Chunker {
	return &Chunker{}
}

func (c *Chunker) load() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		c.encoding = enc
	})
}

// Split returns the chunks of text. Empty input yields no chunks; input
// shorter than one window yields exactly one.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	c.load()
	if c.encoding == nil {
		return splitRunes(text, chunkTokens*4, chunkOverlap*4)
	}

	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= chunkTokens {
		return []string{text}
	}

	var out []string
	step := chunkTokens - chunkOverlap
	for start := 0; start < len(tokens); start += step {
		end := start + chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, c.encoding.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return out
}

// splitRunes approximates token windows at four runes per token.
func splitRunes(text string, window, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= window {
		return []string{text}
	}

	var out []string
	step := window - overlap
	for start := 0; start < len(runes); start += step {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
