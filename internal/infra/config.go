package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TestnetBaseURL = "https://testnet.binancefuture.com"
	MainnetBaseURL = "https://fapi.binance.com"

	TestnetStreamURL = "wss://stream.binancefuture.com/ws"
	MainnetStreamURL = "wss://fstream.binance.com/ws"
)

// Config holds everything the bot needs for one invocation.
// Loaded from an optional config.yaml, then overridden by environment
// variables (secrets should come from the environment or a .env file,
// never the yaml).
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Binance struct {
			BaseURL   string `yaml:"base_url"`
			StreamURL string `yaml:"stream_url"`
			APIKey    string `yaml:"api_key"`
			SecretKey string `yaml:"secret_key"`
			Testnet   bool   `yaml:"testnet"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Trading struct {
		RecvWindowMS     int `yaml:"recv_window_ms"`
		MaxRetries       int `yaml:"max_retries"`
		PollIntervalSec  int `yaml:"poll_interval_sec"`
		MonitorBudgetSec int `yaml:"monitor_budget_sec"`
	} `yaml:"trading"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns a config usable without any file on disk.
// Testnet by default; real trading is opt-in.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "futures-bot"
	cfg.App.Version = "1.0.0"
	cfg.API.Binance.Testnet = true
	cfg.Trading.RecvWindowMS = 5000
	cfg.Trading.MaxRetries = 3
	cfg.Trading.PollIntervalSec = 3
	cfg.Trading.MonitorBudgetSec = 600
	cfg.Logging.Level = "info"
	cfg.Logging.File = "bot.log"
	return cfg
}

// LoadConfig reads path if it exists, applies .env and environment
// overrides, and validates the result. A missing config file is not an
// error: defaults plus environment are enough to run.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// .env sits beside the binary in dev setups; ignore if absent.
	_ = godotenv.Load()

	overrideWithEnv(cfg)
	cfg.applyEndpoints()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideWithEnv lets environment variables win over file values.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		cfg.API.Binance.APIKey = key
	}
	if secret := os.Getenv("BINANCE_API_SECRET"); secret != "" {
		cfg.API.Binance.SecretKey = secret
	}
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		cfg.API.Binance.Testnet = strings.EqualFold(v, "true") || v == "1"
	}
	if lvl := os.Getenv("BOT_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}

// applyEndpoints fills base/stream URLs from the testnet flag unless
// the config pinned them explicitly.
func (c *Config) applyEndpoints() {
	if c.API.Binance.BaseURL == "" {
		if c.API.Binance.Testnet {
			c.API.Binance.BaseURL = TestnetBaseURL
		} else {
			c.API.Binance.BaseURL = MainnetBaseURL
		}
	}
	if c.API.Binance.StreamURL == "" {
		if c.API.Binance.Testnet {
			c.API.Binance.StreamURL = TestnetStreamURL
		} else {
			c.API.Binance.StreamURL = MainnetStreamURL
		}
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.Binance.BaseURL, "https://") {
		return fmt.Errorf("invalid Binance base URL: %s", c.API.Binance.BaseURL)
	}
	if !strings.HasPrefix(c.API.Binance.StreamURL, "wss://") && !strings.HasPrefix(c.API.Binance.StreamURL, "ws://") {
		return fmt.Errorf("invalid Binance stream URL: %s", c.API.Binance.StreamURL)
	}
	if c.Trading.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.Trading.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive")
	}
	if c.Trading.MonitorBudgetSec <= 0 {
		return fmt.Errorf("monitor_budget_sec must be positive")
	}
	if !c.API.Binance.Testnet && os.Getenv("CONFIRM_REAL_MONEY") != "true" {
		return fmt.Errorf("SAFETY_GUARD: mainnet trading requires CONFIRM_REAL_MONEY=true")
	}
	return nil
}

// HasCredentials reports whether signed endpoints can be called.
func (c *Config) HasCredentials() bool {
	return c.API.Binance.APIKey != "" && c.API.Binance.SecretKey != ""
}
