// Package ai implements the language-model collaborators: the JSON
// completion client used by the fallback loop, the confidence-gated route
// classifier and the plan-draft builder. Everything speaks the
// OpenAI-compatible protocol, so one client covers all supported providers.
package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/ajanda/dialog"
	"github.com/hrygo/ajanda/internal/profile"
)

// Config represents the completion client configuration.
type Config struct {
	Provider    string // openai, deepseek, zai, siliconflow, ollama
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.2
	Timeout     int     // Request timeout in seconds (default: 120)
	MaxRPS      float64 // Client-side rate limit (default: 2)
}

// ConfigFromProfile derives the client configuration from the app profile.
func ConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Provider: p.LLMProvider,
		Model:    p.LLMModel,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Timeout:  p.LLMTimeout,
		MaxRPS:   p.LLMMaxRPS,
	}
}

// Client implements dialog.CompletionClient over go-openai.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a completion client for any OpenAI-compatible provider.
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, errors.New("api key required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}
	maxRPS := cfg.MaxRPS
	if maxRPS <= 0 {
		maxRPS = 2
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     time.Duration(timeout) * time.Second,
		limiter:     rate.NewLimiter(rate.Limit(maxRPS), 1),
		logger:      logger,
	}, nil
}

// newHTTPClient builds an HTTP client with sane connection settings for
// long-lived chat requests.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// CompleteJSON sends the chat messages and returns the raw JSON object from
// the response. The schema hint is appended as a trailing system message; the
// response is extracted from markdown fences when the provider wraps it.
func (c *Client) CompleteJSON(ctx context.Context, messages []dialog.Message, schemaHint string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait aborted")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if schemaHint != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: schemaHint,
		})
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion response")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("completion received",
		"model", c.model,
		"duration_ms", time.Since(started).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens)

	raw := ExtractJSON(content)
	if raw == nil {
		return nil, errors.Errorf("no JSON object in completion: %s", truncate(content, 200))
	}
	return raw, nil
}

// ExtractJSON pulls the first JSON object out of a completion, tolerating
// markdown code fences and leading prose.
func ExtractJSON(content string) json.RawMessage {
	content = strings.TrimSpace(content)
	if fenced := extractFenced(content); fenced != "" {
		content = fenced
	}
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				candidate := content[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate)
				}
				return nil
			}
		}
	}
	return nil
}

func extractFenced(content string) string {
	for _, marker := range []string{"```json", "```"} {
		if idx := strings.Index(content, marker); idx >= 0 {
			rest := content[idx+len(marker):]
			if end := strings.Index(rest, "```"); end >= 0 {
				return strings.TrimSpace(rest[:end])
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
