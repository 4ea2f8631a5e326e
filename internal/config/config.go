package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"livelyclient/internal/envelope"
	"livelyclient/internal/eventlog"
	"livelyclient/internal/lively"
)

type Config struct {
	// Lively realm
	Realm     string `env:"LIVELY_REALM" default:"wss://matt.engagelively.com/"`
	Path      string `env:"LIVELY_PATH" default:"/lively-socket.io"`
	Namespace string `env:"LIVELY_NAMESPACE" default:"/l2l"`
	Token     string `env:"LIVELY_TOKEN" default:"incorrect"`
	Sender    string `env:"LIVELY_SENDER" default:"lively_client client"`

	// Client behaviour
	Debug           bool          `env:"LIVELY_DEBUG" default:"false"`
	DisconnectOnAck bool          `env:"LIVELY_DISCONNECT_ON_ACK" default:"false"`
	ConnectTimeout  time.Duration `env:"LIVELY_CONNECT_TIMEOUT" default:"20s"`
	AckTimeout      time.Duration `env:"LIVELY_ACK_TIMEOUT" default:"10s"`

	// Batch throttling; a rate of 0 disables it
	SendRate  float64 `env:"LIVELY_SEND_RATE" default:"0"`
	SendBurst int     `env:"LIVELY_SEND_BURST" default:"1"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Optional sinks
	RedisURL    string `env:"REDIS_URL"`
	RedisLogKey string `env:"REDIS_LOG_KEY" default:"lively:client:log"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Dev realm
	DevRealmPort   int    `env:"DEV_REALM_PORT" default:"8090"`
	DevRealmSecret string `env:"DEV_REALM_SECRET"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// no .env is fine; the process environment still applies
		slog.Debug("No .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	config := &Config{}

	// Realm
	loadEnvString(&config.Realm, "LIVELY_REALM", lively.DefaultRealm)
	loadEnvString(&config.Path, "LIVELY_PATH", lively.DefaultPath)
	loadEnvString(&config.Namespace, "LIVELY_NAMESPACE", lively.DefaultNamespace)
	loadEnvString(&config.Token, "LIVELY_TOKEN", lively.DefaultToken)
	loadEnvString(&config.Sender, "LIVELY_SENDER", envelope.DefaultSender)

	// Behaviour
	if err := loadEnvBool(&config.Debug, "LIVELY_DEBUG", false); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.DisconnectOnAck, "LIVELY_DISCONNECT_ON_ACK", false); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ConnectTimeout, "LIVELY_CONNECT_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.AckTimeout, "LIVELY_ACK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	// Throttling
	if err := loadEnvFloat(&config.SendRate, "LIVELY_SEND_RATE", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.SendBurst, "LIVELY_SEND_BURST", 1); err != nil {
		return nil, err
	}

	// Logging
	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "text")

	// Sinks
	loadEnvString(&config.RedisURL, "REDIS_URL", "")
	loadEnvString(&config.RedisLogKey, "REDIS_LOG_KEY", eventlog.DefaultRedisKey)
	loadEnvString(&config.DatabaseURL, "DATABASE_URL", "")

	// Dev realm
	if err := loadEnvInt(&config.DevRealmPort, "DEV_REALM_PORT", 8090); err != nil {
		return nil, err
	}
	loadEnvString(&config.DevRealmSecret, "DEV_REALM_SECRET", "")

	return config, nil
}

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.Realm == "" {
		errors = append(errors, "LIVELY_REALM must not be empty")
	}
	if c.Namespace == "" {
		errors = append(errors, "LIVELY_NAMESPACE must not be empty")
	}
	if c.ConnectTimeout <= 0 {
		errors = append(errors, "LIVELY_CONNECT_TIMEOUT must be positive")
	}
	if c.AckTimeout <= 0 {
		errors = append(errors, "LIVELY_ACK_TIMEOUT must be positive")
	}
	if c.SendRate < 0 {
		errors = append(errors, "LIVELY_SEND_RATE must not be negative")
	}
	if c.SendBurst < 1 {
		errors = append(errors, "LIVELY_SEND_BURST must be at least 1")
	}
	if c.DevRealmPort < 1 || c.DevRealmPort > 65535 {
		errors = append(errors, "DEV_REALM_PORT must be between 1 and 65535")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// ClientConfig maps the loaded settings onto the broadcast client's options.
func (c *Config) ClientConfig() lively.Config {
	return lively.Config{
		Realm:           c.Realm,
		Path:            c.Path,
		Namespace:       c.Namespace,
		Token:           c.Token,
		Debug:           c.Debug,
		DisconnectOnAck: c.DisconnectOnAck,
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
