package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when TRADESIM_CONFIG is unset.
const DefaultPath = "config/tradesim.yaml"

// DefaultTickers is the universe used by batch runs and prefetching when no
// tickers are given.
var DefaultTickers = []string{"AAPL", "GOOG", "MSFT", "TSLA", "AMZN", "NVDA", "META"}

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradesim.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Redis      Redis      `yaml:"redis"`
	Logging    Logging    `yaml:"logging"`
	MarketData MarketData `yaml:"market_data"`
	Backtest   Backtest   `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	GRPCPort    int    `yaml:"grpc_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs. BaseURL is the
// trading API, used only for the market calendar.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Redis configures the optional bar cache. An empty Addr disables it.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MarketData controls where bars come from and how requests are paced.
type MarketData struct {
	// Source is "alpaca" (fetch, cache to Parquet) or "store" (Parquet only).
	Source          string        `yaml:"source"`
	Feed            string        `yaml:"feed"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	StartDate       string        `yaml:"start_date"`
	// BatchSize is the number of tickers per multi-symbol request when
	// prefetching.
	BatchSize int `yaml:"batch_size"`
}

// Backtest holds the default simulation parameters.
type Backtest struct {
	InitialCapital float64  `yaml:"initial_capital"`
	PositionSize   float64  `yaml:"position_size"`
	Commission     float64  `yaml:"commission"`
	// RiskFreeRate is nil when unset, so an explicit 0 survives defaults.
	RiskFreeRate *float64 `yaml:"risk_free_rate"`
	Workers      int      `yaml:"workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	return cfg, nil
}

// LoadDefault loads the file named by TRADESIM_CONFIG, or DefaultPath. A
// missing default file is not an error: defaults and environment overrides
// apply.
func LoadDefault() (*Config, error) {
	path := os.Getenv("TRADESIM_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		applyEnvOverrides(cfg)
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return cfg, err
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/tradesim.db"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9091
	}
	if c.Alpaca.BaseURL == "" {
		c.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.MarketData.Source == "" {
		c.MarketData.Source = "alpaca"
	}
	if c.MarketData.Feed == "" {
		c.MarketData.Feed = "sip"
	}
	if c.MarketData.RateLimitPerMin == 0 {
		c.MarketData.RateLimitPerMin = 200
	}
	if c.MarketData.BreakerFailures == 0 {
		c.MarketData.BreakerFailures = 5
	}
	if c.MarketData.CacheTTL == 0 {
		c.MarketData.CacheTTL = 24 * time.Hour
	}
	if c.MarketData.RetryAttempts == 0 {
		c.MarketData.RetryAttempts = 3
	}
	if c.MarketData.BatchSize == 0 {
		c.MarketData.BatchSize = 100
	}
	if c.MarketData.StartDate == "" {
		c.MarketData.StartDate = "2020-01-01"
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 100000
	}
	if c.Backtest.PositionSize == 0 {
		c.Backtest.PositionSize = 1.0
	}
	// A zero commission is a legitimate setting, so it keeps its value.
	if c.Backtest.RiskFreeRate == nil {
		rf := defaultRiskFreeRate
		c.Backtest.RiskFreeRate = &rf
	}
	if c.Backtest.Workers == 0 {
		c.Backtest.Workers = 4
	}
}

const defaultRiskFreeRate = 0.02

// RiskFree returns the annual risk-free rate, or the default when unset.
func (b Backtest) RiskFree() float64 {
	if b.RiskFreeRate == nil {
		return defaultRiskFreeRate
	}
	return *b.RiskFreeRate
}

// GRPCAddr returns host:port for the gRPC listener.
func (c *Config) GRPCAddr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.GRPCPort)
}

// MetricsAddr returns host:port for the metrics listener.
func (c *Config) MetricsAddr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.MetricsPort)
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("GRPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = port
		}
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
