package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Port        string
	MongoURI    string
	APIKey      string
	Environment string

	// AuthStrict forces shared-secret enforcement outside production.
	AuthStrict bool

	AllowedOrigins string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "3000"),
		MongoURI:       getEnv("MONGODB_URI", ""),
		APIKey:         getEnv("API_KEY", ""),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AuthStrict:     getBoolEnv("AUTH_STRICT", false),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StrictAuth reports whether the shared-secret header is enforced.
// Production always enforces; development enforces only when opted in.
func (c *Config) StrictAuth() bool {
	return c.IsProduction() || c.AuthStrict
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
