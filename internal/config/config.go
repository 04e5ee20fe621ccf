// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/finopsmind/costengine/internal/model"
)

// DefaultRegion is used when neither the profile store nor the ambient
// configuration names a region.
const DefaultRegion = "us-east-1"

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	Engine       EngineConfig
	Profiles     ProfilesConfig
	Jobs         JobsConfig
	Notification NotificationConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// EngineConfig holds forecasting and audit settings.
type EngineConfig struct {
	DefaultRegion string
	// CallTimeout bounds every single provider call (one provider-day, one region).
	CallTimeout time.Duration

	DefaultHistoricalDays int
	DefaultForecastDays   int
	MaxHistoricalDays     int
	MaxForecastDays       int
	HistoryConcurrency    int
	RegionConcurrency     int

	// AWSProfile and AzureProfile name the profiles used for daily totals.
	AWSProfile   string
	AzureProfile string

	// GCPInstanceMonthlyCost is the flat per-instance monthly cost used by the
	// GCP estimate.
	GCPInstanceMonthlyCost float64
}

// ProfilesConfig locates the saved-profile stores.
type ProfilesConfig struct {
	File          string
	DatabaseURL   string
	EncryptionKey string
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	Enabled           bool
	ForecastSchedule  string
	AuditSchedule     string
	AuditProfiles     []string
	AuditRegions      []string
	ForecastProviders []string
	// GrowthAlertPercent triggers a forecast alert when the projected monthly
	// growth rate exceeds it. Zero disables the alert.
	GrowthAlertPercent float64
	Timeout            time.Duration
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	SlackWebhookURL string
	EmailSMTPHost   string
	EmailSMTPPort   int
	EmailFrom       string
	EmailPassword   string
	EmailRecipients []string
	WebhookURLs     []string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 110*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			DefaultRegion:          getEnv("DEFAULT_REGION", DefaultRegion),
			CallTimeout:            getEnvDuration("PROVIDER_CALL_TIMEOUT", 20*time.Second),
			DefaultHistoricalDays:  getEnvInt("FORECAST_HISTORICAL_DAYS", 30),
			DefaultForecastDays:    getEnvInt("FORECAST_DAYS", 30),
			MaxHistoricalDays:      getEnvInt("FORECAST_MAX_HISTORICAL_DAYS", 365),
			MaxForecastDays:        getEnvInt("FORECAST_MAX_DAYS", 365),
			HistoryConcurrency:     getEnvInt("FORECAST_HISTORY_CONCURRENCY", 5),
			RegionConcurrency:      getEnvInt("AUDIT_REGION_CONCURRENCY", 8),
			AWSProfile:             getEnv("AWS_COST_PROFILE", "default"),
			AzureProfile:           getEnv("AZURE_COST_PROFILE", "azure"),
			GCPInstanceMonthlyCost: getEnvFloat("GCP_INSTANCE_MONTHLY_COST", 50),
		},
		Profiles: ProfilesConfig{
			File:          getEnv("PROFILES_FILE", defaultProfilesFile()),
			DatabaseURL:   getEnv("PROFILES_DATABASE_URL", ""),
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Jobs: JobsConfig{
			Enabled:            getEnvBool("JOBS_ENABLED", false),
			ForecastSchedule:   getEnv("JOB_FORECAST", "0 0 2 * * *"),
			AuditSchedule:      getEnv("JOB_AUDIT", "0 0 3 * * *"),
			AuditProfiles:      getEnvList("JOB_AUDIT_PROFILES", nil),
			AuditRegions:       getEnvList("JOB_AUDIT_REGIONS", nil),
			ForecastProviders:  getEnvList("JOB_FORECAST_PROVIDERS", []string{"aws"}),
			GrowthAlertPercent: getEnvFloat("JOB_GROWTH_ALERT_PERCENT", 20),
			Timeout:            getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
		},
		Notification: NotificationConfig{
			SlackWebhookURL: getEnv("NOTIFICATION_SLACK_WEBHOOK", ""),
			EmailSMTPHost:   getEnv("NOTIFICATION_EMAIL_SMTP_HOST", ""),
			EmailSMTPPort:   getEnvInt("NOTIFICATION_EMAIL_SMTP_PORT", 587),
			EmailFrom:       getEnv("NOTIFICATION_EMAIL_FROM", ""),
			EmailPassword:   getEnv("NOTIFICATION_EMAIL_PASSWORD", ""),
			EmailRecipients: getEnvList("NOTIFICATION_EMAIL_RECIPIENTS", nil),
			WebhookURLs:     getEnvList("NOTIFICATION_WEBHOOK_URLS", nil),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	e := c.Engine
	if e.CallTimeout <= 0 {
		return fmt.Errorf("PROVIDER_CALL_TIMEOUT must be positive")
	}
	if e.MaxHistoricalDays < 1 || e.MaxForecastDays < 1 {
		return fmt.Errorf("forecast maxima must be at least 1")
	}
	if e.DefaultHistoricalDays < 1 || e.DefaultHistoricalDays > e.MaxHistoricalDays {
		return fmt.Errorf("FORECAST_HISTORICAL_DAYS must be between 1 and %d", e.MaxHistoricalDays)
	}
	if e.DefaultForecastDays < 1 || e.DefaultForecastDays > e.MaxForecastDays {
		return fmt.Errorf("FORECAST_DAYS must be between 1 and %d", e.MaxForecastDays)
	}
	if e.HistoryConcurrency < 1 || e.RegionConcurrency < 1 {
		return fmt.Errorf("concurrency limits must be at least 1")
	}
	if e.GCPInstanceMonthlyCost < 0 {
		return fmt.Errorf("GCP_INSTANCE_MONTHLY_COST must not be negative")
	}
	if _, err := model.ParseProviderSet(c.Jobs.ForecastProviders); err != nil {
		return fmt.Errorf("JOB_FORECAST_PROVIDERS: %w", err)
	}
	if c.Profiles.DatabaseURL != "" && c.Profiles.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required when PROFILES_DATABASE_URL is set")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaultProfilesFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.config/costengine/profiles.yaml"
}

// Helper functions
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
