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
	t.Setenv("RELAY_STORAGE_BACKEND", "")
	t.Setenv("RELAY_ALLOWED_CHANNELS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 60*time.Second, cfg.ModelTimeout)
	assert.Equal(t, "/", cfg.CommandPrefix)
	assert.Equal(t, "♻️", cfg.RecycleEmoji)
	assert.Equal(t, "main", cfg.OpenAI.Model)
	assert.Equal(t, 1024, cfg.OpenAI.MaxTokens)
	assert.Equal(t, "You are a helpful chatbot.", cfg.DefaultSystemPrompt)
	assert.Empty(t, cfg.AllowedChannels)
}

func TestLoadAllowedChannelsList(t *testing.T) {
	t.Setenv("RELAY_ALLOWED_CHANNELS", " 111, ,222 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, cfg.AllowedChannels)
}

func TestLoadRejectsFirestoreWithoutProject(t *testing.T) {
	t.Setenv("RELAY_STORAGE_BACKEND", "firestore")
	t.Setenv("FIRESTORE_PROJECT_ID", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("RELAY_MODEL_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestUseMockOverridesBackend(t *testing.T) {
	t.Setenv("RELAY_DEFAULT_BACKEND", "openai")
	t.Setenv("RELAY_USE_MOCK_LLM", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMock, cfg.DefaultBackend)
}

func TestProfilesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  backend: OpenAI
channels:
  "42":
    backend: vertex
    require_situation: true
    prompt_suffix: "stay in character"
  "43":
    prompt_suffix: "short answers"
`), 0o600))
	t.Setenv("RELAY_PROFILES_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	p42 := cfg.Profiles.For("42", cfg.DefaultBackend)
	assert.Equal(t, "vertex", p42.Backend)
	assert.True(t, p42.RequireSituation)
	assert.Equal(t, "stay in character", p42.PromptSuffix)

	p43 := cfg.Profiles.For("43", "mock")
	assert.Equal(t, "openai", p43.Backend)
	assert.False(t, p43.RequireSituation)

	other := cfg.Profiles.For("99", "mock")
	assert.Equal(t, "openai", other.Backend)

	assert.ElementsMatch(t, []string{"openai", "vertex"}, cfg.Backends())
}

func TestProfilesRejectUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  \"1\":\n    backend: llama\n"), 0o600))
	t.Setenv("RELAY_PROFILES_PATH", path)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadDotEnvReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_TEST_DOTENV_KEY=hello\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RELAY_TEST_DOTENV_KEY") })

	loaded, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "hello", os.Getenv("RELAY_TEST_DOTENV_KEY"))
}
