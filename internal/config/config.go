// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Token     TokenConfig     `mapstructure:"token"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime from flags
}

// EthereumConfig holds ledger node configuration.
type EthereumConfig struct {
	// WebSocketURL may be empty or non-streaming; the bridge then runs in
	// degraded mode where only explicit-key signing works.
	WebSocketURL      string        `mapstructure:"websocket_url"`
	CallTimeout       time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout" validate:"gt=0"`
	NetworkIDTTL      time.Duration `mapstructure:"network_id_ttl" validate:"gte=0"`
}

// TokenConfig holds the token contract to bind on startup.
type TokenConfig struct {
	ContractAddress string `mapstructure:"contract_address"`
	ListenerBuffer  int    `mapstructure:"listener_buffer" validate:"gte=1"`
}

// ContractAddressHex returns the configured contract as common.Address.
func (c *TokenConfig) ContractAddressHex() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// NotifyConfig holds the websocket fan-out settings.
type NotifyConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ListenAddr  string `mapstructure:"listen_addr" validate:"required_if=Enabled true"`
	Path        string `mapstructure:"path" validate:"startswith=/"`
	ClientQueue int    `mapstructure:"client_queue" validate:"gte=1"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	Exporter       string  `mapstructure:"exporter" validate:"omitempty,oneof=otlp otlphttp zipkin console"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"`
	Probability    float64 `mapstructure:"probability" validate:"gte=0,lte=1"`
	PrometheusPort int     `mapstructure:"prometheus_port" validate:"gte=0,lte=65535"`
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

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
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
	v.BindEnv("app.name", "BRIDGE_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "BRIDGE_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "BRIDGE_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "BRIDGE_ETH_WS_URL", "ETH_WS_URL", "WEB3_PROVIDER")
	v.BindEnv("ethereum.call_timeout", "BRIDGE_ETH_CALL_TIMEOUT")
	v.BindEnv("ethereum.requests_per_minute", "BRIDGE_ETH_RPM")

	// Token
	v.BindEnv("token.contract_address", "BRIDGE_TOKEN_ADDRESS", "CONTRACT_ADDRESS")

	// Notify
	v.BindEnv("notify.enabled", "BRIDGE_NOTIFY_ENABLED")
	v.BindEnv("notify.listen_addr", "BRIDGE_NOTIFY_ADDR")

	// Health
	v.BindEnv("health.port", "BRIDGE_HEALTH_PORT", "HEALTH_PORT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "BRIDGE_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "BRIDGE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "BRIDGE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "BRIDGE_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ledger-bridge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.websocket_url", "ws://localhost:8546")
	v.SetDefault("ethereum.call_timeout", "10s")
	v.SetDefault("ethereum.dial_timeout", "15s")
	v.SetDefault("ethereum.requests_per_minute", 600)
	v.SetDefault("ethereum.breaker_failures", 5)
	v.SetDefault("ethereum.breaker_timeout", "30s")
	v.SetDefault("ethereum.network_id_ttl", "5m")

	v.SetDefault("token.contract_address", "")
	v.SetDefault("token.listener_buffer", 64)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.listen_addr", ":8090")
	v.SetDefault("notify.path", "/ws")
	v.SetDefault("notify.client_queue", 32)

	v.SetDefault("health.port", 8081)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "ledger-bridge")
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.probability", 1.0)
	v.SetDefault("telemetry.prometheus_port", 9090)
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Token.ContractAddress != "" && !common.IsHexAddress(c.Token.ContractAddress) {
		return fmt.Errorf("invalid token.contract_address: %s", c.Token.ContractAddress)
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter != "console" && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint is required for exporter %q", c.Telemetry.Exporter)
	}
	return nil
}

// Default returns a configuration populated with defaults only. Used by
// embedders that construct the bridge without a config file.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "ledger-bridge", Environment: "development", LogLevel: "info"},
		Ethereum: EthereumConfig{
			CallTimeout:       10 * time.Second,
			DialTimeout:       15 * time.Second,
			RequestsPerMinute: 600,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
			NetworkIDTTL:      5 * time.Minute,
		},
		Token:     TokenConfig{ListenerBuffer: 64},
		Notify:    NotifyConfig{ListenAddr: ":8090", Path: "/ws", ClientQueue: 32},
		Health:    HealthConfig{Port: 8081},
		Telemetry: TelemetryConfig{ServiceName: "ledger-bridge", Exporter: "otlp", Probability: 1, PrometheusPort: 9090},
	}
}
