// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Relayer   RelayerConfig   `mapstructure:"relayer"`
	Liquidity LiquidityConfig `mapstructure:"liquidity"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// RelayerConfig holds order relayer API configuration.
type RelayerConfig struct {
	HTTPURL        string        `mapstructure:"http_url"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	QuoteAsset     string        `mapstructure:"quote_asset"`     // Symbol of the quote/settlement asset
	StaleTimeout   time.Duration `mapstructure:"stale_timeout"`   // Feed staleness before REST fallback
	RequestsPerMin int           `mapstructure:"requests_per_min"`
	OrderbookDepth int           `mapstructure:"orderbook_depth"` // Max orders per snapshot request
}

// LiquidityConfig holds liquidity tracking configuration.
type LiquidityConfig struct {
	Assets          []string      `mapstructure:"assets"` // Symbols of tracked maker assets
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	TUIMode         bool          `mapstructure:"-"` // Set at runtime, not from config file
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("LIQ")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "LIQ_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "LIQ_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "LIQ_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "LIQ_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "LIQ_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "LIQ_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Relayer
	v.BindEnv("relayer.http_url", "LIQ_RELAYER_HTTP_URL", "RELAYER_HTTP_URL")
	v.BindEnv("relayer.websocket_url", "LIQ_RELAYER_WS_URL", "RELAYER_WS_URL")
	v.BindEnv("relayer.quote_asset", "LIQ_RELAYER_QUOTE_ASSET")

	// Liquidity
	v.BindEnv("liquidity.assets", "LIQ_ASSETS")
	v.BindEnv("liquidity.refresh_interval", "LIQ_REFRESH_INTERVAL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "LIQ_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "LIQ_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "LIQ_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "liquidity-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")

	// Relayer defaults
	v.SetDefault("relayer.http_url", "https://api.0x.org/sra/v3")
	v.SetDefault("relayer.websocket_url", "wss://api.0x.org/sra/v3")
	v.SetDefault("relayer.quote_asset", "WETH")
	v.SetDefault("relayer.stale_timeout", "10s")
	v.SetDefault("relayer.requests_per_min", 180)
	v.SetDefault("relayer.orderbook_depth", 100)

	// Liquidity defaults
	v.SetDefault("liquidity.assets", []string{"ZRX"})
	v.SetDefault("liquidity.refresh_interval", "12s") // ~1 block time

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "liquidity-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.WebSocketURL == "" {
		return fmt.Errorf("ethereum.websocket_url is required")
	}
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if c.Relayer.HTTPURL == "" {
		return fmt.Errorf("relayer.http_url is required")
	}
	if c.Relayer.QuoteAsset == "" {
		return fmt.Errorf("relayer.quote_asset is required")
	}
	if len(c.Liquidity.Assets) == 0 {
		return fmt.Errorf("liquidity.assets cannot be empty")
	}
	return nil
}
