// Package config provides configuration for the retention chat client and
// the stub conversation service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Conversation service
	APIBaseURL     string        `yaml:"apiBaseURL"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Widget identity
	UserID         string `yaml:"userID"`
	SubscriptionID string `yaml:"subscriptionID"`

	// JWT settings
	JWTSecret     string        `yaml:"jwtSecret"`
	JWTExpiration time.Duration `yaml:"jwtExpiration"`

	// NATS settings (telemetry sink)
	NATSURL       string `yaml:"natsURL"`
	NATSCAFile    string `yaml:"natsCAFile"`
	NATSCertFile  string `yaml:"natsCertFile"`
	NATSKeyFile   string `yaml:"natsKeyFile"`
	NATSToken     string `yaml:"natsToken"`
	TelemetryNATS bool   `yaml:"telemetryNATS"`

	// Metrics
	MetricsAddr string `yaml:"metricsAddr"`

	// Stub service
	ServerPort         string        `yaml:"serverPort"`
	ServerReadTimeout  time.Duration `yaml:"serverReadTimeout"`
	ServerWriteTimeout time.Duration `yaml:"serverWriteTimeout"`
	RateLimitRequests  int           `yaml:"rateLimitRequests"`
	RateLimitWindow    time.Duration `yaml:"rateLimitWindow"`
	OfferAfterMessages int           `yaml:"offerAfterMessages"`
	AllowedOrigins     []string      `yaml:"allowedOrigins"`

	// LLM replies for the stub service; empty ReplyLLM keeps the keyword script
	ReplyLLM        string        `yaml:"replyLLM"`
	ReplyModel      string        `yaml:"replyModel"`
	ReplyMaxTokens  int           `yaml:"replyMaxTokens"`
	ReplyTimeout    time.Duration `yaml:"replyTimeout"`
	AnthropicAPIKey string        `yaml:"-"`
	OpenAIAPIKey    string        `yaml:"-"`

	// Logging
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	LogFile   string `yaml:"logFile"`

	// Tracing
	TracingEndpoint string `yaml:"tracingEndpoint"`
	TracingEnabled  bool   `yaml:"tracingEnabled"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		APIBaseURL:     "http://localhost:8080/api/v1",
		RequestTimeout: 30 * time.Second,

		UserID:         "demo-user",
		SubscriptionID: "demo-subscription",

		JWTSecret:     "development-secret-change-in-production",
		JWTExpiration: 15 * time.Minute,

		NATSURL: "nats://localhost:4222",

		ServerPort:         "8080",
		ServerReadTimeout:  30 * time.Second,
		ServerWriteTimeout: 30 * time.Second,
		RateLimitRequests:  60,
		RateLimitWindow:    time.Minute,
		OfferAfterMessages: 4,

		ReplyMaxTokens: 300,
		ReplyTimeout:   10 * time.Second,

		LogLevel:  "info",
		LogFormat: "json",

		TracingEndpoint: "localhost:4318",
	}
}

// Load reads configuration from the YAML file named by RETENTION_CONFIG, if
// any, and then from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("RETENTION_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Conversation service
	c.APIBaseURL = getEnv("RETENTION_API_URL", c.APIBaseURL)
	c.RequestTimeout = getDurationEnv("RETENTION_REQUEST_TIMEOUT", c.RequestTimeout)

	// Widget identity
	c.UserID = getEnv("RETENTION_USER_ID", c.UserID)
	c.SubscriptionID = getEnv("RETENTION_SUBSCRIPTION_ID", c.SubscriptionID)

	// JWT
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTExpiration = getDurationEnv("JWT_EXPIRATION", c.JWTExpiration)

	// NATS
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSCAFile = getEnv("NATS_CA_FILE", c.NATSCAFile)
	c.NATSCertFile = getEnv("NATS_CERT_FILE", c.NATSCertFile)
	c.NATSKeyFile = getEnv("NATS_KEY_FILE", c.NATSKeyFile)
	c.NATSToken = getEnv("NATS_TOKEN", c.NATSToken)
	c.TelemetryNATS = getBoolEnv("TELEMETRY_NATS", c.TelemetryNATS)

	// Metrics
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	// Stub service
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.ServerReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.ServerReadTimeout)
	c.ServerWriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.ServerWriteTimeout)
	c.RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", c.RateLimitWindow)
	c.OfferAfterMessages = getIntEnv("OFFER_AFTER_MESSAGES", c.OfferAfterMessages)
	c.AllowedOrigins = getListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)

	// LLM
	c.ReplyLLM = getEnv("REPLY_LLM", c.ReplyLLM)
	c.ReplyModel = getEnv("REPLY_MODEL", c.ReplyModel)
	c.ReplyMaxTokens = getIntEnv("REPLY_MAX_TOKENS", c.ReplyMaxTokens)
	c.ReplyTimeout = getDurationEnv("REPLY_TIMEOUT", c.ReplyTimeout)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)

	// Logging
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	// Tracing
	c.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingEnabled = getBoolEnv("TRACING_ENABLED", c.TracingEnabled)
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("apiBaseURL is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive, got %s", c.RequestTimeout)
	}
	if c.UserID == "" || c.SubscriptionID == "" {
		return fmt.Errorf("userID and subscriptionID are required")
	}
	if c.OfferAfterMessages < 1 {
		return fmt.Errorf("offerAfterMessages must be at least 1, got %d", c.OfferAfterMessages)
	}
	switch c.ReplyLLM {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("replyLLM must be anthropic or openai, got %q", c.ReplyLLM)
	}
	return nil
}

// ReplyAPIKey returns the API key for the configured ReplyLLM provider.
func (c *Config) ReplyAPIKey() string {
	switch c.ReplyLLM {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
