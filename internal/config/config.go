package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	TurnTimeout   time.Duration
	CallIDHeader  string
	CallIDPath    string
	DefaultModel  string
	StreamEnabled bool

	// Scheduling backend
	BackendBaseURL string
	BackendAPIKey  string
	BackendTimeout time.Duration

	// Organization defaults
	OrganizationID string
	OrgTimezone    string
	VisitType      string

	// LLM oracle
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	AWSRegion      string
	BedrockModelID string

	// Session store
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// Transcript archive (optional)
	DatabaseURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		TurnTimeout:   getEnvAsDuration("TURN_TIMEOUT", 30*time.Second),
		CallIDHeader:  getEnv("CALL_ID_HEADER", "x-call-id"),
		CallIDPath:    getEnv("CALL_ID_BODY_PATH", "metadata.vapiCallId"),
		DefaultModel:  getEnv("DEFAULT_MODEL", "voice-scheduler"),
		StreamEnabled: getEnvAsBool("STREAM_ENABLED", true),

		BackendBaseURL: strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:3000"), "/"),
		BackendAPIKey:  getEnv("BACKEND_API_KEY", ""),
		BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),

		OrganizationID: getEnv("ORGANIZATION_ID", ""),
		OrgTimezone:    getEnv("ORG_TIMEZONE", "America/New_York"),
		VisitType:      getEnv("DEFAULT_VISIT_TYPE", "follow_up"),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
