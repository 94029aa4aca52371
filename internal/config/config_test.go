package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.True(t, cfg.ExpansionEnabled)
	assert.Equal(t, 2, cfg.Reading.PrecedingChunks)
	assert.Equal(t, 1200, cfg.Reading.MaxSectionChars)
	assert.Zero(t, cfg.ContextWindow)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: https://api.example.com/v1
  model: gpt-4o-mini
  timeout_seconds: 30
context_window: 32000
expansion_enabled: false
model_windows:
  my-finetune: 64000
reading:
  preceding_chunks: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "https://api.example.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 30, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, 32000, cfg.ContextWindow)
	assert.False(t, cfg.ExpansionEnabled)
	assert.Equal(t, 3, cfg.Reading.PrecedingChunks)
	assert.Equal(t, 64000, cfg.ModelWindows["my-finetune"])
	// Untouched keys keep their defaults.
	assert.Equal(t, 1, cfg.Reading.FollowingChunks)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: from-file\n")
	t.Setenv("SAGE_LLM_MODEL", "from-env")
	t.Setenv("SAGE_LLM_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "llm:\n  model: \"\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "llm:\n  timeout_seconds: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "context_window: -5\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "model_windows:\n  bad-model: 0\n"))
	assert.Error(t, err)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
