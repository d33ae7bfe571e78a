package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Queue configuration
	AverageServingTime time.Duration // fallback when settings:config has no value
	MaxNameLength      int
	MaxPartySize       int
	HistoryLimit       int

	// Staff access (shared password gate, bcrypt hash)
	StaffPasswordHash string

	// Background task configuration
	EstimateUpdateInterval time.Duration
	HistoryTrimInterval    time.Duration
	HistoryRetention       int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Queue
		AverageServingTime: getEnvAsDuration("AVERAGE_SERVING_TIME", "5m"),
		MaxNameLength:      getEnvAsInt("MAX_NAME_LENGTH", 50),
		MaxPartySize:       getEnvAsInt("MAX_PARTY_SIZE", 20),
		HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 20),

		// Staff
		StaffPasswordHash: getEnv("STAFF_PASSWORD_HASH", ""),

		// Background tasks
		EstimateUpdateInterval: getEnvAsDuration("ESTIMATE_UPDATE_INTERVAL", "5s"),
		HistoryTrimInterval:    getEnvAsDuration("HISTORY_TRIM_INTERVAL", "1h"),
		HistoryRetention:       getEnvAsInt("HISTORY_RETENTION", 500),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
