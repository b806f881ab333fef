package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Clinic defaults, used until settings are saved through the admin API
	ClinicID              string
	ClinicName            string
	ClinicUTCOffset       string
	SlotStepMinutes       int
	ReminderOffsets       []int
	ThankYouOffsetMinutes int
	EnableReminders       bool
	EnableThankYou        bool
	ReminderBatchLimit    int

	CronSecret            string
	AdminJWTSecret        string
	CORSAllowedOrigins    []string
	BookingRateLimitRPS   float64
	BookingRateLimitBurst int

	// Email Configuration
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	BackupBucket string
	BackupPrefix string

	// Outbox delivery
	EventsTransport       string
	EventsQueueURL        string
	KafkaBrokers          []string
	KafkaTopic            string
	OutboxPollInterval    time.Duration
	ShutdownGraceDuration time.Duration

	OTelEnabled       bool
	OTelEndpoint      string
	OTelSamplingRatio float64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ClinicID:              getEnv("CLINIC_ID", "default"),
		ClinicName:            getEnv("CLINIC_NAME", "Children's Clinic"),
		ClinicUTCOffset:       getEnv("CLINIC_UTC_OFFSET", "+00:00"),
		SlotStepMinutes:       getEnvAsInt("SLOT_STEP_MINUTES", 60),
		ReminderOffsets:       getEnvAsIntList("REMINDER_OFFSETS_MINUTES", []int{1440, 120}),
		ThankYouOffsetMinutes: getEnvAsInt("THANK_YOU_OFFSET_MINUTES", 60),
		EnableReminders:       getEnvAsBool("ENABLE_REMINDERS", true),
		EnableThankYou:        getEnvAsBool("ENABLE_THANK_YOU", true),
		ReminderBatchLimit:    getEnvAsInt("REMINDER_BATCH_LIMIT", 50),

		CronSecret:            getEnv("CRON_SECRET", ""),
		AdminJWTSecret:        getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		BookingRateLimitRPS:   getEnvAsFloat("BOOKING_RATE_LIMIT_RPS", 1),
		BookingRateLimitBurst: getEnvAsInt("BOOKING_RATE_LIMIT_BURST", 5),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Children's Clinic"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BackupBucket: getEnv("BACKUP_BUCKET", ""),
		BackupPrefix: getEnv("BACKUP_PREFIX", "backups/"),

		EventsTransport:       strings.ToLower(strings.TrimSpace(getEnv("EVENTS_TRANSPORT", "none"))),
		EventsQueueURL:        getEnv("EVENTS_QUEUE_URL", ""),
		KafkaBrokers:          getEnvAsList("KAFKA_BROKERS", nil),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "clinic.bookings"),
		OutboxPollInterval:    getEnvAsDuration("OUTBOX_POLL_INTERVAL", time.Second),
		ShutdownGraceDuration: getEnvAsDuration("SHUTDOWN_GRACE", 15*time.Second),

		OTelEnabled:       getEnvAsBool("OTEL_ENABLED", false),
		OTelEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSamplingRatio: getEnvAsFloat("OTEL_SAMPLING_RATIO", 1),
	}
}

// Validate reports the settings the API cannot start without. Production
// additionally requires both auth secrets.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if _, err := schedule.ParseUTCOffset(c.ClinicUTCOffset); err != nil {
		errs = append(errs, fmt.Errorf("CLINIC_UTC_OFFSET: %w", err))
	}
	if c.ReminderBatchLimit <= 0 {
		errs = append(errs, errors.New("REMINDER_BATCH_LIMIT must be positive"))
	}
	switch c.EventsTransport {
	case "none", "sqs", "kafka":
	default:
		errs = append(errs, fmt.Errorf("EVENTS_TRANSPORT %q is not one of none, sqs, kafka", c.EventsTransport))
	}
	if c.Env == "production" {
		if c.CronSecret == "" {
			errs = append(errs, errors.New("CRON_SECRET is required in production"))
		}
		if c.AdminJWTSecret == "" {
			errs = append(errs, errors.New("ADMIN_JWT_SECRET is required in production"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsIntList parses "1440,120". Any bad entry falls back to the default.
func getEnvAsIntList(key string, defaultValue []int) []int {
	parts := getEnvAsList(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
