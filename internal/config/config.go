package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// MongoDB Configuration
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// Redis Configuration (cache + job queue)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Remote profile source
	ProfileSourceBaseURL string
	ProfileFetchTimeout  time.Duration

	// Batch resolution
	BatchChunkSize int
	BatchDelay     time.Duration
	CacheTTL       time.Duration

	// Job queue / consumer
	QueueName        string
	QueueMaxAttempts int
	QueueBackoffBase time.Duration
	ConsumerWorkers  int

	// Callback delivery
	CallbackTimeout    time.Duration
	CallbackRetryDelay time.Duration

	// Maintenance janitor
	JanitorEnabled  bool
	JanitorStuckAge time.Duration
	JanitorLockTTL  time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// MongoDB
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/magpie?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "magpie"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheEnabled:  getBoolEnv("CACHE_ENABLED", true),

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Remote profile source
		ProfileSourceBaseURL: getEnv("PROFILE_SOURCE_BASE_URL", "https://www.tiktok.com"),
		ProfileFetchTimeout:  getDurationEnv("PROFILE_FETCH_TIMEOUT_SEC", 12) * time.Second,

		// Batch resolution
		BatchChunkSize: getIntEnv("BATCH_CHUNK_SIZE", 10),
		BatchDelay:     getDurationEnv("BATCH_DELAY_MS", 1000) * time.Millisecond,
		CacheTTL:       getDurationEnv("CACHE_TTL_SEC", 86400) * time.Second,

		// Job queue / consumer
		QueueName:        getEnv("QUEUE_NAME", "profile-scrape"),
		QueueMaxAttempts: getIntEnv("QUEUE_MAX_ATTEMPTS", 3),
		QueueBackoffBase: getDurationEnv("QUEUE_BACKOFF_BASE_MS", 1000) * time.Millisecond,
		ConsumerWorkers:  getIntEnv("CONSUMER_WORKERS", 4),

		// Callback delivery
		CallbackTimeout:    getDurationEnv("CALLBACK_TIMEOUT_SEC", 10) * time.Second,
		CallbackRetryDelay: getDurationEnv("CALLBACK_RETRY_DELAY_SEC", 5) * time.Second,

		// Maintenance janitor
		JanitorEnabled:  getBoolEnv("JANITOR_ENABLED", true),
		JanitorStuckAge: getDurationEnv("JANITOR_STUCK_AGE_SEC", 900) * time.Second,
		JanitorLockTTL:  getDurationEnv("JANITOR_LOCK_TTL_SEC", 60) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, DELETE, OPTIONS"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
