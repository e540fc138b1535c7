package complete

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/aegish/aegish/pkg/types"
)

// defaultIgnorePatterns filter noise out of filesystem completions.
var defaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"__pycache__",
	"*.o",
	"*.pyc",
	"*.swp",
	".DS_Store",
}

const maxFSCandidates = 8

// fsSource completes the word under the cursor against directory entries.
type fsSource struct {
	ignore []glob.Glob
}

func newFSSource(patterns []string) *fsSource {
	s := &fsSource{}
	for _, p := range patterns {
		if g, err := glob.Compile(p); err == nil {
			s.ignore = append(s.ignore, g)
		}
	}
	return s
}

func (s *fsSource) ignored(name string) bool {
	for _, g := range s.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// candidates completes the final whitespace-separated word of prefix as a
// path relative to workdir. Returned texts are full command lines.
func (s *fsSource) candidates(workdir, prefix string) []candidate {
	if prefix == "" {
		return nil
	}
	word := lastWord(prefix)
	head := prefix[:len(prefix)-len(word)]

	dir, partial := filepath.Split(word)
	scanDir := dir
	if !filepath.IsAbs(scanDir) {
		scanDir = filepath.Join(workdir, dir)
	}
	if dir == "" {
		scanDir = workdir
	}

	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return nil
	}

	var out []candidate
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, partial) || name == partial {
			continue
		}
		if partial == "" && strings.HasPrefix(name, ".") {
			continue
		}
		if s.ignored(name) {
			continue
		}
		completed := name
		if entry.IsDir() {
			completed += "/"
		}
		out = append(out, candidate{
			text:   head + dir + completed,
			source: rankFilesystem,
		})
		if len(out) == maxFSCandidates {
			break
		}
	}
	return out
}

func lastWord(prefix string) string {
	idx := strings.LastIndexAny(prefix, " \t")
	return prefix[idx+1:]
}

func defaultWorkdir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

const completionPrompt = `You complete shell command lines. Reply with the full completed command line only, no commentary. If no useful completion exists, reply with an empty string.`

// modelCandidate asks the provider for one completion, bounded by the
// request context. Any failure is a silent miss.
func (e *Engine) modelCandidate(ctx context.Context, prefix string) (string, bool) {
	msg, err := e.provider.Complete(ctx, []*types.Message{
		types.NewSystemMessage(completionPrompt),
		types.NewUserMessage(prefix),
	})
	if err != nil {
		e.logger.Debugf("model completion miss: %v", err)
		return "", false
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" || !strings.HasPrefix(text, prefix) || text == prefix {
		return "", false
	}
	// Single-line completions only.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return text, true
}
