package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the assistant.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol). All providers
	// (openai, deepseek, zai, siliconflow, ollama) use the same config.
	LLMProvider string // Provider identifier: openai, deepseek, zai, siliconflow, ollama
	LLMAPIKey   string
	LLMBaseURL  string // Optional, has a default per provider
	LLMModel    string
	LLMTimeout  int     // LLM request timeout in seconds (default: 120)
	LLMMaxRPS   float64 // Client-side request rate limit (default: 2)

	// Dialog behavior
	MaxSteps            int    // Fallback loop step budget
	Timezone            string // IANA name used to build day windows
	DeterministicRender bool   // Menus instead of the LLM for smalltalk/unknown
	EnablePlanner       bool   // Multi-event plan-draft workflow

	// Channels
	TelegramToken string

	// Storage and runtime
	Mode    string // demo, dev, prod
	Data    string
	Driver  string
	DSN     string
	Version string
}

// Provider default configurations for the LLM, used when a base URL or model
// is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-5.2",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("AJANDA_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("AJANDA_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("AJANDA_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("AJANDA_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("AJANDA_LLM_TIMEOUT_SECONDS", 120)
	if p.LLMMaxRPS <= 0 {
		p.LLMMaxRPS = 2
	}

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.MaxSteps = getEnvOrDefaultInt("AJANDA_MAX_STEPS", 8)
	p.Timezone = getEnvOrDefault("AJANDA_TIMEZONE", "Europe/Istanbul")
	p.DeterministicRender = getEnvOrDefault("AJANDA_DETERMINISTIC_RENDER", "true") == "true"
	p.EnablePlanner = getEnvOrDefault("AJANDA_ENABLE_PLANNER", "false") == "true"
	p.TelegramToken = getEnvOrDefault("AJANDA_TELEGRAM_TOKEN", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.MaxSteps <= 0 {
		p.MaxSteps = 8
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "ajanda")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/ajanda"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("ajanda_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
