package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Market struct {
		ExchangeSuffix   string `yaml:"exchange_suffix"`
		HistoryRange     string `yaml:"history_range"`
		PeerHistoryRange string `yaml:"peer_history_range"`
		NewsLimit        int    `yaml:"news_limit"`
		PeerLimit        int    `yaml:"peer_limit"`
	} `yaml:"market"`
	Advisor struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"advisor"`
	Trend struct {
		ModelDir string `yaml:"model_dir"`
	} `yaml:"trend"`
	Cache struct {
		SQLitePath string        `yaml:"sqlite_path"`
		TTL        time.Duration `yaml:"ttl"`
		PruneCron  string        `yaml:"prune_cron"`
	} `yaml:"cache"`
	Schedule struct {
		RefreshCron string   `yaml:"refresh_cron"`
		Watchlist   []string `yaml:"watchlist"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"`
	Proxy               string        `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Advisor.APIKey = v
	}
	if v := os.Getenv("ADVISOR_API_KEY"); v != "" {
		c.Advisor.APIKey = v
	}
	if v := os.Getenv("ADVISOR_BASE_URL"); v != "" {
		c.Advisor.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Cache.SQLitePath = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CACHE_TTL: %w", err)
		}
		c.Cache.TTL = ttl
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Trend.ModelDir = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Market.ExchangeSuffix == "" {
		c.Market.ExchangeSuffix = ".NS"
	}
	if c.Market.HistoryRange == "" {
		c.Market.HistoryRange = "2y"
	}
	if c.Market.PeerHistoryRange == "" {
		c.Market.PeerHistoryRange = "5d"
	}
	if c.Market.NewsLimit == 0 {
		c.Market.NewsLimit = 5
	}
	if c.Market.PeerLimit == 0 {
		c.Market.PeerLimit = 3
	}
	if c.Advisor.BaseURL == "" {
		c.Advisor.BaseURL = "https://api.openai.com/v1"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "gpt-4o-mini"
	}
	if c.Advisor.MaxTokens == 0 {
		c.Advisor.MaxTokens = 500
	}
	if c.Trend.ModelDir == "" {
		c.Trend.ModelDir = "models"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/analysis_cache.db"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 6 * time.Hour
	}
	if c.Cache.PruneCron == "" {
		c.Cache.PruneCron = "0 0 * * * *"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.CollaboratorTimeout == 0 {
		c.CollaboratorTimeout = 20 * time.Second
	}
}

// Validate checks that all required fields are set and sane.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Market.ExchangeSuffix, ".") {
		return fmt.Errorf("market.exchange_suffix must start with '.'")
	}
	if c.Market.NewsLimit < 1 {
		return fmt.Errorf("market.news_limit must be positive")
	}
	if c.Market.PeerLimit < 1 {
		return fmt.Errorf("market.peer_limit must be positive")
	}
	if c.Advisor.Model == "" {
		return fmt.Errorf("advisor.model is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("collaborator_timeout must be positive")
	}
	return nil
}

// TelegramEnabled reports whether the Telegram surface has credentials.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
