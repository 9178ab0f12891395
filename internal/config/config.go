package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	GeminiAPIKey string
	GeminiModel  string

	GoogleCredentialsFile string
	ClinicTimezone        string

	// DoctorCalendars maps a doctor id to its external calendar id,
	// e.g. "jason=abc@group.calendar.google.com,elizabeth=def@group.calendar.google.com".
	DoctorCalendars map[string]string

	SessionMaxAge        time.Duration
	SessionSweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		GoogleCredentialsFile: getEnv("GOOGLE_CALENDAR_CREDENTIALS", "credentials/google-calendar.json"),
		ClinicTimezone:        getEnv("CLINIC_TIMEZONE", "America/New_York"),

		DoctorCalendars: getEnvAsMap("DOCTOR_CALENDAR_IDS"),

		SessionMaxAge:        getEnvAsDuration("SESSION_MAX_AGE", 24*time.Hour),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsMap parses "key=value,key=value" pairs from an environment variable.
func getEnvAsMap(key string) map[string]string {
	out := make(map[string]string)
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
