package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	Addr          string
	DBPath        string
	AdminPassword string
	LogLevel      string
	Environment   string

	// SchoolTZ is the school's wall-clock timezone. Every eligibility window
	// and "today" computation uses this location, never the requester's.
	SchoolTZ string
	Location *time.Location
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables and a missing
	// .env file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Addr:          getEnv("ADDR", ":8080"),
		DBPath:        getEnv("DB_PATH", "here.db"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Environment:   strings.ToLower(getEnv("ENVIRONMENT", "development")),
		SchoolTZ:      getEnv("SCHOOL_TZ", "America/New_York"),
	}

	loc, err := time.LoadLocation(cfg.SchoolTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHOOL_TZ %q: %w", cfg.SchoolTZ, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
