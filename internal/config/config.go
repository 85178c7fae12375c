// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Ingress   IngressConfig   `mapstructure:"ingress"`
	Egress    EgressConfig    `mapstructure:"egress"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ExchangeConfig holds derivatives exchange websocket configuration.
type ExchangeConfig struct {
	WebSocketURL        string        `mapstructure:"websocket_url"`
	Instruments         []string      `mapstructure:"instruments"`
	BookDepth           int           `mapstructure:"book_depth"`
	BookUpdateFrequency int           `mapstructure:"book_update_frequency"` // 10, 100, or 500 ms
	SubscriptionType    string        `mapstructure:"subscription_type"`     // "SNAPSHOT" or "SNAPSHOT_AND_UPDATE"
	MaxReconnects       int           `mapstructure:"max_reconnects"`
	InitialBackoff      time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff          time.Duration `mapstructure:"max_backoff"`
	SubscribesPerMinute int           `mapstructure:"subscribes_per_minute"`
}

// IngressConfig holds the engine-side IPC listener configuration.
type IngressConfig struct {
	Channel    string `mapstructure:"channel"`
	SocketPath string `mapstructure:"socket_path"`
}

// Path returns the ingress socket path, derived from the channel name
// unless an explicit path was configured.
func (c *IngressConfig) Path() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return fmt.Sprintf("/tmp/feedprocessing_%s.sock", c.Channel)
}

// EgressConfig holds the downstream BBO output configuration.
type EgressConfig struct {
	SocketPath string `mapstructure:"socket_path"`
	Enabled    bool   `mapstructure:"enabled"`
}

// EngineConfig holds feed-engine tunables.
type EngineConfig struct {
	MaxMessages uint64 `mapstructure:"max_messages"` // 0 = unbounded
	TUIMode     bool   `mapstructure:"-"`            // Set at runtime, not from config file
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
	v.SetEnvPrefix("FEED")
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
	v.BindEnv("app.name", "FEED_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "FEED_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "FEED_LOG_LEVEL", "LOG_LEVEL")

	// Exchange
	v.BindEnv("exchange.websocket_url", "FEED_EXCHANGE_WS_URL", "EXCHANGE_WS_URL")
	v.BindEnv("exchange.instruments", "FEED_INSTRUMENTS")
	v.BindEnv("exchange.book_depth", "FEED_BOOK_DEPTH")
	v.BindEnv("exchange.book_update_frequency", "FEED_BOOK_UPDATE_FREQUENCY")

	// Transports
	v.BindEnv("ingress.channel", "FEED_INGRESS_CHANNEL")
	v.BindEnv("ingress.socket_path", "FEED_INGRESS_SOCKET")
	v.BindEnv("egress.socket_path", "FEED_EGRESS_SOCKET")

	// Engine
	v.BindEnv("engine.max_messages", "FEED_MAX_MESSAGES")

	// Telemetry
	v.BindEnv("telemetry.enabled", "FEED_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "FEED_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "FEED_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "feedpipe")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Exchange defaults
	v.SetDefault("exchange.websocket_url", "wss://stream.crypto.com/exchange/v1/market")
	v.SetDefault("exchange.instruments", []string{"BTCUSD-PERP"})
	v.SetDefault("exchange.book_depth", 10)
	v.SetDefault("exchange.book_update_frequency", 10)
	v.SetDefault("exchange.subscription_type", "SNAPSHOT_AND_UPDATE")
	v.SetDefault("exchange.max_reconnects", 0) // infinite
	v.SetDefault("exchange.initial_backoff", "1s")
	v.SetDefault("exchange.max_backoff", "30s")
	v.SetDefault("exchange.subscribes_per_minute", 60)

	// Transport defaults
	v.SetDefault("ingress.channel", "market_data")
	v.SetDefault("egress.socket_path", "/tmp/default_bbo_output.sock")
	v.SetDefault("egress.enabled", true)

	// Engine defaults
	v.SetDefault("engine.max_messages", 0)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "feedpipe")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Exchange.WebSocketURL == "" {
		return fmt.Errorf("exchange.websocket_url is required")
	}
	if len(c.Exchange.Instruments) == 0 {
		return fmt.Errorf("exchange.instruments cannot be empty")
	}
	for _, sym := range c.Exchange.Instruments {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("exchange.instruments contains an empty symbol")
		}
	}
	if c.Exchange.BookDepth <= 0 {
		return fmt.Errorf("exchange.book_depth must be positive, got %d", c.Exchange.BookDepth)
	}
	switch c.Exchange.BookUpdateFrequency {
	case 10, 100, 500:
	default:
		return fmt.Errorf("exchange.book_update_frequency must be 10, 100 or 500, got %d", c.Exchange.BookUpdateFrequency)
	}
	if c.Ingress.Channel == "" && c.Ingress.SocketPath == "" {
		return fmt.Errorf("ingress.channel or ingress.socket_path is required")
	}
	if c.Egress.Enabled && c.Egress.SocketPath == "" {
		return fmt.Errorf("egress.socket_path is required when egress is enabled")
	}
	return nil
}
