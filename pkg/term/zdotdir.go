package term

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// zshIntegration installs preexec/precmd hooks that bracket every command
// with OSC 133 sequences: C carries the command text at execution start, D
// carries the exit code at the next prompt. The capturer keys off these to
// detect command boundaries without cooperation from the command itself.
// The user's own zshrc is sourced first so the wrapped shell behaves
// normally.
const zshIntegration = `# aegish shell integration
if [[ -f "$HOME/.zshrc" ]]; then
  ZDOTDIR="$HOME" source "$HOME/.zshrc"
fi

__aegish_preexec() {
  printf '\033]133;C;%s\007' "$1"
}

__aegish_precmd() {
  printf '\033]133;D;%s\007' "$?"
}

autoload -Uz add-zsh-hook
add-zsh-hook preexec __aegish_preexec
add-zsh-hook precmd __aegish_precmd
`

func isZsh(shell string) bool {
	return strings.HasSuffix(shell, "zsh")
}

// writeZshIntegration creates a temporary ZDOTDIR holding the hook rc file.
// The caller removes the directory when the session ends.
func writeZshIntegration() (string, error) {
	dir, err := os.MkdirTemp("", "aegish-zdotdir-*")
	if err != nil {
		return "", fmt.Errorf("failed to create zdotdir: %w", err)
	}

	rcPath := filepath.Join(dir, ".zshrc")
	if err := os.WriteFile(rcPath, []byte(zshIntegration), 0600); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to write integration zshrc: %w", err)
	}
	return dir, nil
}
