package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	TradeURL  string `yaml:"trade_url"`
	StreamURL string `yaml:"stream_url"`
}

type StrategyConfig struct {
	Lookback            int     `yaml:"lookback"`
	RSIPeriod           int     `yaml:"rsi_period"`
	MinSeverity         float64 `yaml:"min_severity"`
	LiquidationSeverity float64 `yaml:"liquidation_severity"`
	StopPct             float64 `yaml:"stop_pct"`
	TrailPct            float64 `yaml:"trail_pct"`
	BaseAllocation      float64 `yaml:"base_allocation"`
	MaxTranches         int     `yaml:"max_tranches"`
	HistoryBars         int     `yaml:"history_bars"`
}

type SchedulerConfig struct {
	IntervalSec int    `yaml:"interval_sec"`
	Timezone    string `yaml:"timezone"`
	Open        string `yaml:"open"`
	Close       string `yaml:"close"`
}

type Config struct {
	Alpaca    AlpacaConfig    `yaml:"alpaca"`
	Symbols   []string        `yaml:"symbols"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Workers   int             `yaml:"workers"`
	Storage   struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`
	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads the YAML config and applies .env / environment overrides for
// secrets on top of it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Missing .env is fine, real environment still applies.
	_ = godotenv.Load()

	setStr(&cfg.Alpaca.APIKey, "ALPACA_API_KEY")
	setStr(&cfg.Alpaca.APISecret, "ALPACA_API_SECRET")
	setStr(&cfg.Notify.WebhookURL, "NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Storage.Path, "STORAGE_PATH")
	setInt(&cfg.Metrics.Port, "METRICS_PORT")

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Alpaca.DataURL = "https://data.alpaca.markets"
	cfg.Alpaca.TradeURL = "https://paper-api.alpaca.markets"
	cfg.Alpaca.StreamURL = "wss://stream.data.alpaca.markets/v2/iex"
	cfg.Strategy.Lookback = 20
	cfg.Strategy.RSIPeriod = 14
	cfg.Strategy.MinSeverity = 1.0
	cfg.Strategy.LiquidationSeverity = 3.0
	cfg.Strategy.StopPct = 0.05
	cfg.Strategy.TrailPct = 0.05
	cfg.Strategy.BaseAllocation = 1000
	cfg.Strategy.HistoryBars = 100
	cfg.Scheduler.IntervalSec = 60
	cfg.Scheduler.Timezone = "America/New_York"
	cfg.Scheduler.Open = "09:30"
	cfg.Scheduler.Close = "16:00"
	cfg.Workers = 4
	cfg.Storage.Path = "anomaly_bot.db"
	cfg.Metrics.Port = 9102
	cfg.Logging.Level = "info"
	return cfg
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate rejects configurations that would fail mid-loop; called once at
// startup so missing collaborators are fatal before trading starts.
func (c *Config) Validate() error {
	if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
		return fmt.Errorf("alpaca credentials are required (config or ALPACA_API_KEY / ALPACA_API_SECRET)")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Strategy.StopPct <= 0 || c.Strategy.StopPct >= 1 {
		return fmt.Errorf("strategy.stop_pct must be in (0, 1), got %v", c.Strategy.StopPct)
	}
	if c.Strategy.TrailPct <= 0 || c.Strategy.TrailPct >= 1 {
		return fmt.Errorf("strategy.trail_pct must be in (0, 1), got %v", c.Strategy.TrailPct)
	}
	if c.Strategy.BaseAllocation <= 0 {
		return fmt.Errorf("strategy.base_allocation must be positive")
	}
	if c.Strategy.HistoryBars < c.Strategy.Lookback+1 || c.Strategy.HistoryBars < c.Strategy.RSIPeriod+1 {
		return fmt.Errorf("strategy.history_bars %d is too small for lookback %d / rsi_period %d",
			c.Strategy.HistoryBars, c.Strategy.Lookback, c.Strategy.RSIPeriod)
	}
	if _, _, err := ParseClock(c.Scheduler.Open); err != nil {
		return fmt.Errorf("scheduler.open: %w", err)
	}
	if _, _, err := ParseClock(c.Scheduler.Close); err != nil {
		return fmt.Errorf("scheduler.close: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
