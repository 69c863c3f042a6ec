package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverSQLite = "sqlite"
)

type Config struct {
	HTTPPort    string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string

	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	SerpAPIKey        string
	SearXNGURL        string
	SearchMaxAttempts int
	SearchTimeout     time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SearchCacheTTL time.Duration
}

var AppConfig Config

// LoadConfig reads an optional .env file and then the process environment.
// It reports whether a .env file was found so the caller can log it once
// logging is set up.
func LoadConfig() (bool, error) {
	envFileFound := godotenv.Load() == nil

	AppConfig = Config{
		HTTPPort:    getEnv("HTTP_PORT", "5005"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSQLite)),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "veritas"),
		DatabaseURL:   getEnv("DATABASE_URL", "veritas.db"),

		SerpAPIKey:        getEnv("SERPAPI_API_KEY", ""),
		SearXNGURL:        getEnv("SEARXNG_URL", ""),
		SearchMaxAttempts: getEnvAsInt("SEARCH_MAX_ATTEMPTS", 3),
		SearchTimeout:     getEnvAsDuration("SEARCH_TIMEOUT", 30*time.Second),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		SearchCacheTTL: getEnvAsDuration("SEARCH_CACHE_TTL", 24*time.Hour),
	}

	return envFileFound, AppConfig.Validate()
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=%s", StoreDriverMongo)
		}
	case StoreDriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (want %s or %s)", c.StoreDriver, StoreDriverMongo, StoreDriverSQLite)
	}
	if c.SearchMaxAttempts < 1 {
		return fmt.Errorf("SEARCH_MAX_ATTEMPTS must be at least 1, got %d", c.SearchMaxAttempts)
	}
	if c.LLMTimeout <= 0 || c.SearchTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT and SEARCH_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
