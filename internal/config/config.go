package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Twilio messaging (inbound webhook validation + outbound sends).
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	AdminWhatsAppNumber string

	// SendGrid admin email notifications.
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	AdminEmail        string

	// Scheduling policy.
	Workers       []string
	OpenHour      int
	CloseHour     int
	WindowDays    int
	ExcludedDays  []time.Weekday
	SessionTTL    time.Duration
	SweepInterval time.Duration

	// Admin API.
	AdminJWTSecret     string
	AdminUsername      string
	AdminPasswordHash  string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_PHONE_NUMBER", ""),
		AdminWhatsAppNumber: getEnv("ADMIN_WHATSAPP_NUMBER", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Arlington Steamers"),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),

		Workers:       getEnvAsList("WORKERS", []string{"Alice", "Bob", "Charlie"}),
		OpenHour:      getEnvAsInt("OPEN_HOUR", 8),
		CloseHour:     getEnvAsInt("CLOSE_HOUR", 18),
		WindowDays:    getEnvAsInt("WINDOW_DAYS", 7),
		ExcludedDays:  getEnvAsWeekdays("EXCLUDED_DAYS", []time.Weekday{time.Saturday, time.Sunday}),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
	}
}

// Validate reports missing required settings. The server refuses to start
// without a database and a redis address; everything else degrades
// gracefully (notifications are skipped when Twilio/SendGrid are unset).
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}
	if c.OpenHour < 0 || c.CloseHour > 23 || c.OpenHour > c.CloseHour {
		return fmt.Errorf("config: invalid business hours %d..%d", c.OpenHour, c.CloseHour)
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("config: WORKERS must name at least one worker")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

// getEnvAsList parses a comma-separated environment variable.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func getEnvAsWeekdays(key string, defaultValue []time.Weekday) []time.Weekday {
	parts := getEnvAsList(key, nil)
	if parts == nil {
		return defaultValue
	}
	var out []time.Weekday
	for _, part := range parts {
		if day, ok := weekdayNames[strings.ToLower(part)]; ok {
			out = append(out, day)
		}
	}
	return out
}
