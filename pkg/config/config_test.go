package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	m := NewManager(store)
	require.NoError(t, m.RegisterSection(NewLLMSection()))
	require.NoError(t, m.RegisterSection(NewDaemonSection()))
	require.NoError(t, m.RegisterSection(NewCompletionSection()))
	return m, path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, path := newManager(t)

	llm, _ := m.GetSection(SectionIDLLM)
	llm.(*LLMSection).Model = "gpt-4o-mini"
	daemon, _ := m.GetSection(SectionIDDaemon)
	daemon.(*DaemonSection).SocketPath = "/tmp/test.sock"
	require.NoError(t, m.SaveAll())

	store2, err := NewFileStore(path)
	require.NoError(t, err)
	m2 := NewManager(store2)
	llm2 := NewLLMSection()
	daemon2 := NewDaemonSection()
	require.NoError(t, m2.RegisterSection(llm2))
	require.NoError(t, m2.RegisterSection(daemon2))
	require.NoError(t, m2.LoadAll())

	assert.Equal(t, "gpt-4o-mini", llm2.GetModel())
	path2, err := daemon2.ResolveSocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.sock", path2)
}

func TestMissingFileStartsEmpty(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.LoadAll())

	llm, _ := m.GetSection(SectionIDLLM)
	assert.Empty(t, llm.(*LLMSection).GetModel())
}

func TestDuplicateSectionRejected(t *testing.T) {
	m, _ := newManager(t)
	assert.Error(t, m.RegisterSection(NewLLMSection()))
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestDaemonSocketEnvOverride(t *testing.T) {
	t.Setenv("AEGISH_SOCKET", "/run/user/1/aegish.sock")
	s := NewDaemonSection()
	s.SocketPath = "/from/config.sock"

	path, err := s.ResolveSocketPath()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1/aegish.sock", path)
}

func TestDaemonSanitizerDefaultsOn(t *testing.T) {
	s := NewDaemonSection()
	assert.True(t, s.SanitizerEnabled())

	require.NoError(t, s.SetData(map[string]any{"sanitize_egress": false}))
	assert.False(t, s.SanitizerEnabled())
}

func TestCompletionSectionDecodesJSONNumbers(t *testing.T) {
	s := NewCompletionSection()
	require.NoError(t, s.SetData(map[string]any{
		"budget_ms":       float64(40),
		"ignore_patterns": []any{"*.tmp", "dist"},
		"use_model":       true,
	}))

	assert.Equal(t, 40*time.Millisecond, s.Budget())
	assert.Equal(t, []string{"*.tmp", "dist"}, s.GetIgnorePatterns())
	assert.True(t, s.ModelEnabled())
}

func TestCompletionNegativeBudgetInvalid(t *testing.T) {
	s := NewCompletionSection()
	require.NoError(t, s.SetData(map[string]any{"budget_ms": -5}))
	assert.Error(t, s.Validate())
}

func TestBuildProviderPrecedence(t *testing.T) {
	t.Setenv("AEGISH_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "")

	p, err := BuildProvider("my-model", "", "")
	require.NoError(t, err)
	assert.Equal(t, "my-model", p.GetModel())
	assert.Equal(t, "env-key", p.GetAPIKey())
}

func TestBuildProviderRequiresKey(t *testing.T) {
	t.Setenv("AEGISH_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := BuildProvider("", "", "")
	assert.Error(t, err)
}
