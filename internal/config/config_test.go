package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simplex-host.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `version = 1`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "grammars", cfg.GrammarsPath)
	assert.Equal(t, []string{"."}, cfg.WatchPaths)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "data/history.db", cfg.History.Path)
	assert.True(t, cfg.VerificationEnabled(), "verification should default to on")
}

func TestLoad_RejectsUnsupportedVersion(t *testing.T) {
	path := writeConfig(t, `version = 7`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config version")
}

func TestLoad_LanguageOverrides(t *testing.T) {
	path := writeConfig(t, `
version = 1

[languages.python]
enabled = false

[languages.simplex]
extensions = [".simplex"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	registry, err := cfg.LanguageRegistry()
	require.NoError(t, err)
	assert.False(t, registry["python"].Enabled)
	assert.Equal(t, []string{".simplex"}, registry["simplex"].Extensions)
}

func TestLoad_RejectsUnknownLanguage(t *testing.T) {
	path := writeConfig(t, `
version = 1

[languages.cobol]
enabled = true
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown language override")
}

func TestLoad_VerificationToggle(t *testing.T) {
	path := writeConfig(t, `
version = 1

[grammar_verification]
enabled = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.VerificationEnabled())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1, cfg.Version)
	assert.NotEmpty(t, cfg.Observability.Addr)
	_, err := cfg.LanguageRegistry()
	assert.NoError(t, err)
}
