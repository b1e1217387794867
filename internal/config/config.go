package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config centralizes runtime settings for the API and the persistence
// worker.
type Config struct {
	Port      string
	AuthToken string

	LogLevel  string
	LogFormat string

	GatewayAPIKey            string
	GatewayBaseURL           string
	GatewayAppName           string
	GatewaySiteURL           string
	GatewayTimeoutMS         int
	GatewayMaxRetries        int
	GatewayStreamIdleTimeout int
	SystemPrompt             string

	ModelCatalogPath string
	ModelCostPenalty float64

	GeoModel           string
	GeoMaxTokens       int
	GeoCacheTTLSeconds int
	GeoCacheMaxEntries int

	DatabaseURL string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisStream      string
	RedisDLQ         string
	RedisGroup       string
	RedisConsumer    string
	RedisCachePrefix string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8080"),
		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		GatewayAPIKey:            getEnv("AI_GATEWAY_API_KEY", getEnv("LOVABLE_API_KEY", "")),
		GatewayBaseURL:           getEnv("AI_GATEWAY_BASE_URL", "https://ai.gateway.lovable.dev/v1"),
		GatewayAppName:           getEnv("AI_GATEWAY_APP_NAME", "J.A.R.V.I.S."),
		GatewaySiteURL:           getEnv("AI_GATEWAY_SITE_URL", ""),
		GatewayTimeoutMS:         getEnvInt("AI_GATEWAY_TIMEOUT_MS", 60000),
		GatewayMaxRetries:        getEnvInt("AI_GATEWAY_MAX_RETRIES", 1),
		GatewayStreamIdleTimeout: getEnvInt("AI_GATEWAY_STREAM_IDLE_TIMEOUT_MS", 0),
		SystemPrompt:             getEnv("ASSISTANT_SYSTEM_PROMPT", ""),

		ModelCatalogPath: getEnv("MODEL_CATALOG_PATH", ""),
		ModelCostPenalty: getEnvFloat("MODEL_COST_PENALTY", 0.1),

		GeoModel:           getEnv("GEO_MODEL", "google/gemini-2.5-flash"),
		GeoMaxTokens:       getEnvInt("GEO_MAX_TOKENS", 2000),
		GeoCacheTTLSeconds: getEnvInt("GEO_CACHE_TTL_SECONDS", 3600),
		GeoCacheMaxEntries: getEnvInt("GEO_CACHE_MAX_ENTRIES", 256),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisStream:      getEnv("REDIS_STREAM", "jarvis_messages"),
		RedisDLQ:         getEnv("REDIS_DLQ_STREAM", "jarvis_messages_dlq"),
		RedisGroup:       getEnv("REDIS_GROUP", "jarvis_writers"),
		RedisConsumer:    getEnv("REDIS_CONSUMER", "api-1"),
		RedisCachePrefix: getEnv("REDIS_CACHE_PREFIX", "jarvis:geo:"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),

		WorkerEnabled: getEnvBool("PERSISTENCE_WORKER_ENABLED", true),
	}
}

func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutMS) * time.Millisecond
}

func (c Config) StreamIdleTimeout() time.Duration {
	return time.Duration(c.GatewayStreamIdleTimeout) * time.Millisecond
}

func (c Config) GeoCacheTTL() time.Duration {
	return time.Duration(c.GeoCacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	items := make([]string, 0)
	for _, raw := range strings.Split(value, ",") {
		if item := strings.TrimSpace(raw); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
