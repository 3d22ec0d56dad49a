package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBackend, cfg.Service.Backend)
	assert.Equal(t, DefaultEndpoint, cfg.Service.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Service.Timeout)
	assert.Equal(t, "auto", cfg.Speech.Engine)
	assert.Equal(t, "alloy", cfg.Speech.Voice)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audioscribe.yaml")
	content := `
service:
  endpoint: http://describer.internal/api/describe-image
  timeout: 15s
speech:
  engine: none
logLevel: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://describer.internal/api/describe-image", cfg.Service.Endpoint)
	assert.Equal(t, 15*time.Second, cfg.Service.Timeout)
	assert.Equal(t, "none", cfg.Speech.Engine)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("AUDIOSCRIBE_ENDPOINT", "http://override:9000/describe")
	t.Setenv("AUDIOSCRIBE_TIMEOUT", "5")

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override:9000/describe", cfg.Service.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Service.Timeout)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad timeout", func(t *testing.T) {
		t.Setenv("AUDIOSCRIBE_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "AUDIOSCRIBE_TIMEOUT")
	})

	t.Run("unknown engine", func(t *testing.T) {
		t.Setenv("AUDIOSCRIBE_SPEECH_ENGINE", "telepathy")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "unknown speech engine")
	})

	t.Run("openai without key", func(t *testing.T) {
		t.Setenv("AUDIOSCRIBE_SPEECH_ENGINE", "openai")
		t.Setenv("OPENAI_API_KEY", "")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("AUDIOSCRIBE_BACKEND", "carrier-pigeon")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "unknown backend")
	})
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("AUDIOSCRIBE_SPEECH_ENGINE", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	// a later layer can repair what the environment got wrong
	cfg.Speech.Engine = "none"
	assert.NoError(t, cfg.Validate())
}

func TestLoadOllamaBackend(t *testing.T) {
	t.Setenv("AUDIOSCRIBE_BACKEND", "ollama")
	t.Setenv("AUDIOSCRIBE_OLLAMA_MODEL", "llava:7b")
	t.Setenv("AUDIOSCRIBE_ENDPOINT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Service.Backend)
	assert.Equal(t, "llava:7b", cfg.Ollama.Model)
	assert.NoError(t, cfg.Validate())
}
