package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/ajanda/internal/profile"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"type":"say","text":"merhaba"}`, `{"type":"say","text":"merhaba"}`},
		{"leading prose", `Tabii, işte yanıtım: {"type":"say","text":"merhaba"}`, `{"type":"say","text":"merhaba"}`},
		{"json fence", "```json\n{\"type\":\"say\",\"text\":\"merhaba\"}\n```", `{"type":"say","text":"merhaba"}`},
		{"plain fence", "```\n{\"ok\":true}\n```", `{"ok":true}`},
		{"nested object", `{"a":{"b":{"c":1}},"d":2}`, `{"a":{"b":{"c":1}},"d":2}`},
		{"braces inside strings", `{"text":"kullan {parantez} böyle"}`, `{"text":"kullan {parantez} böyle"}`},
		{"escaped quote", `{"text":"de\"rin"}`, `{"text":"de\"rin"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractJSON(tc.content)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestExtractJSONRejectsGarbage(t *testing.T) {
	assert.Nil(t, ExtractJSON("no json here"))
	assert.Nil(t, ExtractJSON(`{"unterminated": `))
	assert.Nil(t, ExtractJSON(""))
	assert.Nil(t, ExtractJSON(`{"bad" "json"}`))
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(&Config{Provider: "openai", Model: "gpt-5.2"}, nil)
	assert.Error(t, err)

	// Local ollama works without a key.
	c, err := NewClient(&Config{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(&Config{Provider: "openai", APIKey: "sk-test", Model: "gpt-5.2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.maxTokens)
	assert.Equal(t, float32(0.2), c.temperature)
	assert.NotNil(t, c.limiter)
}

func TestConfigFromProfile(t *testing.T) {
	p := &profile.Profile{
		LLMProvider: "deepseek",
		LLMAPIKey:   "sk-test",
		LLMBaseURL:  "https://api.deepseek.com",
		LLMModel:    "deepseek-chat",
		LLMTimeout:  60,
		LLMMaxRPS:   1,
	}
	cfg := ConfigFromProfile(p)
	assert.Equal(t, "deepseek", cfg.Provider)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Equal(t, 60, cfg.Timeout)
	assert.Equal(t, float64(1), cfg.MaxRPS)
}
