package complete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if name[len(name)-1] == '/' {
			require.NoError(t, os.Mkdir(filepath.Join(dir, name[:len(name)-1]), 0750))
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0600))
	}
}

func texts(candidates []candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.text
	}
	return out
}

func TestFSCompletesLastWord(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "report.txt", "readme.md", "scripts/")

	src := newFSSource(defaultIgnorePatterns)
	got := texts(src.candidates(dir, "cat re"))
	assert.ElementsMatch(t, []string{"cat report.txt", "cat readme.md"}, got)
}

func TestFSCompletesDirectoriesWithSlash(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "scripts/")

	src := newFSSource(defaultIgnorePatterns)
	got := texts(src.candidates(dir, "cd scr"))
	assert.Equal(t, []string{"cd scripts/"}, got)
}

func TestFSCompletesWithinSubdirectory(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "scripts/")
	populate(t, filepath.Join(dir, "scripts"), "deploy.sh")

	src := newFSSource(defaultIgnorePatterns)
	got := texts(src.candidates(dir, "sh scripts/de"))
	assert.Equal(t, []string{"sh scripts/deploy.sh"}, got)
}

func TestFSHonorsIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "main.go", "main.o")

	src := newFSSource(defaultIgnorePatterns)
	got := texts(src.candidates(dir, "vim ma"))
	assert.Equal(t, []string{"vim main.go"}, got)
}

func TestFSSkipsHiddenOnEmptyPartial(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, ".hidden", "visible")

	src := newFSSource(nil)
	got := texts(src.candidates(dir, "ls "))
	assert.Equal(t, []string{"ls visible"}, got)
}

func TestLastWord(t *testing.T) {
	assert.Equal(t, "file", lastWord("cat file"))
	assert.Equal(t, "cat", lastWord("cat"))
	assert.Equal(t, "", lastWord("cat "))
	assert.Equal(t, "b", lastWord("a\tb"))
}
