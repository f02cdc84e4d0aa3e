package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration
type Config struct {
	// Lark configuration
	Lark LarkConfig

	// OpenAI-compatible completion API configuration (optional)
	AI AIConfig

	// State persistence configuration
	State StateConfig

	// Delivery queue configuration
	Delivery DeliveryConfig

	// Address of the optional debug HTTP endpoint (empty disables it)
	DebugAddr string

	// Log verbosity (0 = warn, 1 = info, 2 = debug, 3+ = trace)
	Verbosity int
}

// LarkConfig contains platform credentials
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// AIConfig contains completion API configuration
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// StateConfig contains state store configuration
type StateConfig struct {
	DBPath string
}

// DeliveryConfig contains delivery queue configuration
type DeliveryConfig struct {
	// MinSpacing is the minimum interval between consecutive outbound
	// operations, reflecting the platform's rate constraint.
	MinSpacing time.Duration
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables.
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	// State DB path
	dbPath := os.Getenv("STATE_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".botframework", "state.db")
	}

	// Minimum spacing between delivered responses
	spacingMS := 1000
	if val := os.Getenv("DELIVERY_SPACING_MS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			spacingMS = parsed
		}
	}

	verbosity := 1
	if val := os.Getenv("VERBOSITY"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			verbosity = parsed
		}
	}

	return &Config{
		Lark: LarkConfig{
			AppID:     os.Getenv("LARK_APP_ID"),
			AppSecret: os.Getenv("LARK_APP_SECRET"),
		},
		AI: AIConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: os.Getenv("AI_BASE_URL"),
			Model:   os.Getenv("AI_MODEL"),
		},
		State: StateConfig{
			DBPath: dbPath,
		},
		Delivery: DeliveryConfig{
			MinSpacing: time.Duration(spacingMS) * time.Millisecond,
		},
		DebugAddr: os.Getenv("DEBUG_ADDR"),
		Verbosity: verbosity,
	}
}
