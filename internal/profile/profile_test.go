package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	var p Profile
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	assert.Equal(t, "gpt-5.2", p.LLMModel)
	assert.Equal(t, 120, p.LLMTimeout)
	assert.Equal(t, float64(2), p.LLMMaxRPS)
	assert.Equal(t, 8, p.MaxSteps)
	assert.Equal(t, "Europe/Istanbul", p.Timezone)
	assert.True(t, p.DeterministicRender)
	assert.False(t, p.EnablePlanner)
	assert.False(t, p.IsAIEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AJANDA_LLM_PROVIDER", "deepseek")
	t.Setenv("AJANDA_LLM_API_KEY", "sk-test")
	t.Setenv("AJANDA_MAX_STEPS", "4")
	t.Setenv("AJANDA_DETERMINISTIC_RENDER", "false")
	t.Setenv("AJANDA_ENABLE_PLANNER", "true")
	t.Setenv("AJANDA_TIMEZONE", "UTC")

	var p Profile
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.Equal(t, 4, p.MaxSteps)
	assert.Equal(t, "UTC", p.Timezone)
	assert.False(t, p.DeterministicRender)
	assert.True(t, p.EnablePlanner)
	assert.True(t, p.IsAIEnabled())
}

func TestFromEnvUnknownProviderFallsBack(t *testing.T) {
	t.Setenv("AJANDA_LLM_PROVIDER", "acme-llm")

	var p Profile
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
}

func TestValidateDefaultsModeAndDSN(t *testing.T) {
	dir := t.TempDir()
	p := Profile{Mode: "bogus", Data: dir}

	require.NoError(t, p.Validate())

	assert.Equal(t, "demo", p.Mode)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, filepath.Join(dir, "ajanda_demo.db"), p.DSN)
	assert.Equal(t, 8, p.MaxSteps)
	assert.True(t, p.IsDev())
}

func TestValidateKeepsExplicitDSN(t *testing.T) {
	dir := t.TempDir()
	p := Profile{Mode: "dev", Data: dir, Driver: "sqlite", DSN: "/tmp/custom.db", MaxSteps: 3}

	require.NoError(t, p.Validate())

	assert.Equal(t, "/tmp/custom.db", p.DSN)
	assert.Equal(t, 3, p.MaxSteps)
}

func TestValidateRejectsMissingDataDir(t *testing.T) {
	p := Profile{Mode: "dev", Data: "/nonexistent/ajanda-test-data"}
	assert.Error(t, p.Validate())
}
