package conf

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// State persistence
	State StateConfig

	// Game rules (loaded from YAML)
	Game *GameFileConfig

	// Admin API configuration
	API APIConfig

	// Image renderer (optional)
	Render RenderConfig

	// Moonshot configuration (optional, intent fallback)
	Moonshot MoonshotConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	BotName   string
	APIQPS    float64 // Client-side limit on Feishu OpenAPI calls
}

// StateConfig contains persistence configuration
type StateConfig struct {
	DBPath string
}

// APIConfig contains admin API configuration
type APIConfig struct {
	Port int
}

// RenderConfig contains text-to-image service configuration
type RenderConfig struct {
	Endpoint string
}

// MoonshotConfig contains Moonshot configuration
type MoonshotConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Any OpenAI-compatible endpoint; empty means Moonshot
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// State DB path
	stateDBPath := os.Getenv("STATE_DB_PATH")
	if stateDBPath == "" {
		homeDir, _ := os.UserHomeDir()
		stateDBPath = filepath.Join(homeDir, ".feishu-wife", "state.db")
	}

	apiPort := 9877
	if val := os.Getenv("API_PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			apiPort = parsed
		}
	}

	qps := 10.0
	if val := os.Getenv("FEISHU_API_QPS"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed > 0 {
			qps = parsed
		}
	}

	// Load game rules from YAML
	gameConfig, err := LoadGameConfig(os.Getenv("GAME_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			BotName:   os.Getenv("BOT_NAME"),
			APIQPS:    qps,
		},
		State: StateConfig{
			DBPath: stateDBPath,
		},
		Game: gameConfig,
		API: APIConfig{
			Port: apiPort,
		},
		Render: RenderConfig{
			Endpoint: os.Getenv("RENDER_ENDPOINT"),
		},
		Moonshot: MoonshotConfig{
			APIKey:  os.Getenv("MOONSHOT_API_KEY"),
			Model:   os.Getenv("MOONSHOT_MODEL"),
			BaseURL: os.Getenv("MOONSHOT_BASE_URL"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	if c.Game != nil {
		return c.Game.Validate()
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
