package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	X        XConfig
	Analysis AnalysisConfig
	Database DatabaseConfig
	Server   ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// XConfig holds X API configuration
type XConfig struct {
	BearerToken          string
	BaseURL              string
	MaxRequestsPerMinute int
	RequestTimeout       time.Duration
}

// AnalysisConfig holds analytics engine configuration
type AnalysisConfig struct {
	MaxPosts int
	CacheTTL time.Duration
	Timeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port                 int
	MaxRequestsPerMinute int
}

// LoadConfig loads configuration from .env file
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Profile Analytics"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		X: XConfig{
			BearerToken:          getEnv("X_BEARER_TOKEN", ""),
			BaseURL:              getEnv("X_API_BASE_URL", "https://api.twitter.com/2"),
			MaxRequestsPerMinute: getEnvAsInt("X_MAX_REQUESTS_PER_MINUTE", 60),
			RequestTimeout:       getEnvAsDuration("X_REQUEST_TIMEOUT", 15*time.Second),
		},
		Analysis: AnalysisConfig{
			MaxPosts: getEnvAsInt("ANALYSIS_MAX_POSTS", 50),
			CacheTTL: getEnvAsDuration("ANALYSIS_CACHE_TTL", 30*time.Minute),
			Timeout:  getEnvAsDuration("ANALYSIS_TIMEOUT", 20*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./analytics.db"),
		},
		Server: ServerConfig{
			Port:                 getEnvAsInt("SERVER_PORT", 8080),
			MaxRequestsPerMinute: getEnvAsInt("SERVER_MAX_REQUESTS_PER_MINUTE", 30),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "30m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.X.BearerToken == "" {
		return fmt.Errorf("X_BEARER_TOKEN environment variable is required")
	}
	if config.X.RequestTimeout <= 0 {
		return fmt.Errorf("X_REQUEST_TIMEOUT must be positive")
	}

	// the X API caps max_results at 100 and refuses anything under 5
	if config.Analysis.MaxPosts < 5 || config.Analysis.MaxPosts > 100 {
		return fmt.Errorf("ANALYSIS_MAX_POSTS must be between 5 and 100")
	}
	if config.Analysis.CacheTTL <= 0 {
		return fmt.Errorf("ANALYSIS_CACHE_TTL must be positive")
	}
	if config.Analysis.Timeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}

	// if we are storing the db in a nested directory, create the directory
	if config.Database.Path != ":memory:" {
		dbDir := filepath.Dir(config.Database.Path)
		if dbDir != "." && dbDir != "" {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	return nil
}
