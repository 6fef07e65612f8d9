package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the rule engine service.
// Values come from config.defaults.yaml when present, overridden by
// APP_-prefixed environment variables.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPPort int    `mapstructure:"HTTP_PORT"`

	NATSUrl string `mapstructure:"NATS_URL"`

	// Subjects the engine listens on / publishes to.
	NATSCallEventSubject    string `mapstructure:"NATS_CALL_EVENT_SUBJECT"`
	NATSCallEventQueueGroup string `mapstructure:"NATS_CALL_EVENT_QUEUE_GROUP"`
	NATSConfigSubject       string `mapstructure:"NATS_CONFIG_SUBJECT"`
	NATSMessageLogSubject   string `mapstructure:"NATS_MESSAGE_LOG_SUBJECT"`

	// Local state database (day ledger + last-known-good config snapshot).
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// Contact directory. Empty DSN disables directory lookups; the
	// contact filter then treats every caller as a non-contact.
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	// HMAC secret for the bearer tokens the config-sync service presents.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`

	// Outbound SMS transport: "mock" or "gateway".
	SMSProvider        string `mapstructure:"SMS_PROVIDER"`
	GatewayAPIURL      string `mapstructure:"GATEWAY_API_URL"`
	GatewayAPIKey      string `mapstructure:"GATEWAY_API_KEY"`
	GatewaySenderID    string `mapstructure:"GATEWAY_SENDER_ID"`
	GatewayTimeoutSecs int    `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`
}

// Load reads configuration from config.defaults.yaml (searched in the usual
// locations) merged with APP_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("APP")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", 8090)

	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_CALL_EVENT_SUBJECT", "call.events")
	v.SetDefault("NATS_CALL_EVENT_QUEUE_GROUP", "rule_engine_workers")
	v.SetDefault("NATS_CONFIG_SUBJECT", "rules.config.updated")
	v.SetDefault("NATS_MESSAGE_LOG_SUBJECT", "telemetry.message_log")

	v.SetDefault("SQLITE_PATH", "./data/rule_engine.db")
	v.SetDefault("POSTGRES_DSN", "")

	v.SetDefault("JWT_ACCESS_SECRET", "access-secret-must-be-overridden-in-prod")

	v.SetDefault("SMS_PROVIDER", "mock")
	v.SetDefault("GATEWAY_API_URL", "")
	v.SetDefault("GATEWAY_API_KEY", "")
	v.SetDefault("GATEWAY_SENDER_ID", "")
	v.SetDefault("GATEWAY_TIMEOUT_SECONDS", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Base configuration file ('config.defaults.yaml') not found; using defaults and environment variables.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
