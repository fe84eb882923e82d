package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync engine.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Open-data catalog configuration
	CatalogBaseURL  string
	CatalogAppToken string
	FetchLimit      int
	FetchTimeout    time.Duration

	// Sync pacing
	PropertyDelay     time.Duration
	WorkerCount       int
	ActivityDetailCap int

	// Notification configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string
	SMSGatewayURL     string
	SMSGatewayTimeout time.Duration

	// Change-event feed (optional; empty disables publishing)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Suppression thresholds, in days per authority. Zero disables.
	SuppressDOBDays  int
	SuppressOATHDays int
	SuppressHPDDays  int
	SuppressFDNYDays int
}

// Load loads configuration from a .env file (if present) and environment
// variables.
func Load() *Config {
	godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "regsync"),

		Port: getEnv("PORT", "8080"),

		CatalogBaseURL:  getEnv("CATALOG_BASE_URL", "https://data.cityofnewyork.us/resource"),
		CatalogAppToken: getEnv("CATALOG_APP_TOKEN", ""),
		FetchLimit:      getIntEnv("CATALOG_FETCH_LIMIT", 500),
		FetchTimeout:    getDurationEnv("CATALOG_FETCH_TIMEOUT", 30*time.Second),

		PropertyDelay:     getDurationEnv("SYNC_PROPERTY_DELAY", 2*time.Second),
		WorkerCount:       getIntEnv("SYNC_WORKERS", 1),
		ActivityDetailCap: getIntEnv("ACTIVITY_DETAIL_CAP", 10),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "RegSync"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "alerts@regsync.io"),
		SMSGatewayURL:     getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayTimeout: getDurationEnv("SMS_GATEWAY_TIMEOUT", 30*time.Second),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "regsync-events"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "change-events"),

		SuppressDOBDays:  getIntEnv("SUPPRESS_DOB_DAYS", 2190),
		SuppressOATHDays: getIntEnv("SUPPRESS_OATH_DAYS", 1095),
		SuppressHPDDays:  getIntEnv("SUPPRESS_HPD_DAYS", 1095),
		SuppressFDNYDays: getIntEnv("SUPPRESS_FDNY_DAYS", 0),
	}
}

// Validate checks the configuration no meaningful work is possible without.
func (c *Config) Validate() error {
	if c.DBUser == "" || c.DBHost == "" || c.DBName == "" {
		return fmt.Errorf("database configuration is incomplete (DB_USER/DB_HOST/DB_NAME)")
	}
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL must be set")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
