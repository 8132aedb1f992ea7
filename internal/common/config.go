package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	API     APIConfig
	OCR     OCRPollConfig
	Session SessionPollConfig
}

// APIConfig holds settings for the document service transport
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// OCRPollConfig holds OCR job polling settings
type OCRPollConfig struct {
	Interval time.Duration
}

// SessionPollConfig holds the bounded contextualization poll settings
type SessionPollConfig struct {
	Interval time.Duration
	Attempts int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: getEnv("DOCUCHAT_BASE_URL", "http://localhost:3000"),
			Token:   getEnv("DOCUCHAT_TOKEN", ""),
			Timeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		},
		OCR: OCRPollConfig{
			Interval: getEnvAsDuration("OCR_POLL_INTERVAL", 1200*time.Millisecond),
		},
		Session: SessionPollConfig{
			Interval: getEnvAsDuration("SESSION_POLL_INTERVAL", time.Second),
			Attempts: getEnvAsInt("SESSION_POLL_ATTEMPTS", 10),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "DOCUCHAT_BASE_URL is required", ErrInvalidInput)
	}
	if c.API.Token == "" {
		return NewAppError("CONFIG_ERROR", "DOCUCHAT_TOKEN is required", ErrInvalidInput)
	}
	if c.OCR.Interval <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_POLL_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.Session.Attempts <= 0 {
		return NewAppError("CONFIG_ERROR", "SESSION_POLL_ATTEMPTS must be positive", ErrInvalidInput)
	}
	return nil
}
