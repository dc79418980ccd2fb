package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string
	MCPAddr  string // JSON-RPC MCP listener; empty disables it

	// Database
	DatabaseURL string

	// Serper search API
	SerperAPIKey  string
	SerperBaseURL string

	// OpenRouter (OpenAI-compatible chat completions)
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string // text fact-checking model
	VisionModel       string // multimodal model for image analysis
	AppReferer        string // HTTP-Referer header sent to OpenRouter
	AppTitle          string // X-Title header sent to OpenRouter

	// Fact-check defaults
	DefaultMaxResults  int
	DefaultTemperature float64
	DefaultMaxTokens   int

	// Kafka
	KafkaBrokers     []string
	KafkaTopicEvents string
	KafkaEnabled     bool

	// S3/Storage (image archive; optional)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string

	// Redis search cache (optional)
	RedisAddr      string
	SearchCacheTTL time.Duration

	// Auth
	AdminToken         string // guards /admin; empty disables the surface
	DefaultQuotaChars  int64
	DefaultQuotaPeriod string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		MCPAddr:  getEnv("MCP_ADDR", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SerperAPIKey:  getEnv("SERPER_API_KEY", ""),
		SerperBaseURL: getEnv("SERPER_BASE_URL", "https://google.serper.dev"),

		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "deepseek/deepseek-chat-v3-0324:free"),
		VisionModel:       getEnv("OPENROUTER_VISION_MODEL", "nousresearch/bakllava"),
		AppReferer:        getEnv("APP_URL", "http://localhost:8080"),
		AppTitle:          getEnv("APP_TITLE", "NewsGuard"),

		DefaultMaxResults:  clampRange(getEnvInt("FACTCHECK_MAX_RESULTS", 5), 1, 10),
		DefaultTemperature: getEnvFloat("FACTCHECK_TEMPERATURE", 0.2),
		DefaultMaxTokens:   clampRange(getEnvInt("FACTCHECK_MAX_TOKENS", 2000), 1, 4000),

		KafkaBrokers:     []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
		KafkaTopicEvents: getEnv("KAFKA_TOPIC_EVENTS", "newsguard.analyses.v1"),
		KafkaEnabled:     getEnvBool("KAFKA_ENABLED", false),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "newsguard-images"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		SearchCacheTTL: getEnvDuration("SEARCH_CACHE_TTL", 10*time.Minute),

		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		DefaultQuotaChars:  int64(getEnvInt("DEFAULT_QUOTA_CHARS", 100000)),
		DefaultQuotaPeriod: getEnv("DEFAULT_QUOTA_PERIOD", "monthly"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// clampRange returns v clamped into [min, max]. Used to keep config values in valid range.
func clampRange(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
