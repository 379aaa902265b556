package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/dealrefresher/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Promotion cache store
	DBDriver    string
	DBPath      string
	DatabaseURL string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Refresh scheduling
	RefreshInterval time.Duration

	// HTTP API
	HTTPAddr string

	// Grocery store account
	PicnicUsername    string
	PicnicPassword    string
	PicnicCountryCode string
	PicnicBaseURL     string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	refreshInterval, _ := strconv.Atoi(getEnv("REFRESH_INTERVAL_SECONDS", "21600"))

	return &Config{
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:               getEnv("DB_PATH", "deals.db"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "deals_refresh"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		RefreshInterval:      time.Duration(refreshInterval) * time.Second,
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		PicnicUsername:       getEnv("PICNIC_USERNAME", ""),
		PicnicPassword:       getEnv("PICNIC_PASSWORD", ""),
		PicnicCountryCode:    strings.ToUpper(getEnv("PICNIC_COUNTRY_CODE", "NL")),
		PicnicBaseURL:        getEnv("PICNIC_BASE_URL", ""),
		Environment:          getEnv("DEALS_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.NewConfiguration("DB_PATH is required for the sqlite driver", nil)
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.NewConfiguration("DATABASE_URL is required for the postgres driver", nil)
		}
	default:
		return errors.NewConfiguration(fmt.Sprintf("unsupported DB_DRIVER %q", c.DBDriver), nil)
	}

	if c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.RefreshInterval <= 0 {
		return errors.NewConfiguration("REFRESH_INTERVAL_SECONDS must be positive", nil)
	}
	return nil
}

// HasPicnicCredentials reports whether a grocery store account is configured
func (c *Config) HasPicnicCredentials() bool {
	return c.PicnicUsername != "" && c.PicnicPassword != ""
}

// IsProduction reports whether the application runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
