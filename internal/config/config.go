package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // zone database for DISPLAY_TIMEZONE on minimal images

	"clockreport.service/internal/core/model"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// The report service runs next to the CMS database and reads every setting
// from the environment; a .env file is honoured for local development.

type Config struct {
	DBHost              string `mapstructure:"DB_HOST"`
	DBPort              string `mapstructure:"DB_PORT"`
	DBUser              string `mapstructure:"DB_USER"`
	DBPassword          string `mapstructure:"DB_PASSWORD"`
	DBName              string `mapstructure:"DB_NAME"`
	DBSSLMode           string `mapstructure:"DB_SSLMODE"`
	ServerPort          string `mapstructure:"SERVER_PORT"`
	IsLocalDev          bool   `mapstructure:"IS_LOCAL_DEV"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`
	DisplayTimezone     string `mapstructure:"DISPLAY_TIMEZONE"`
	AdminBaseURL        string `mapstructure:"ADMIN_BASE_URL"`
	MetaNamespace       string `mapstructure:"META_NAMESPACE"`
	EventType           string `mapstructure:"EVENT_TYPE"`
	EventStatus         string `mapstructure:"EVENT_STATUS"`
	AWSRegion           string `mapstructure:"AWS_REGION"`
	AWSEndpoint         string `mapstructure:"AWS_ENDPOINT"`
	ReminderSQSQueueURL string `mapstructure:"REMINDER_SQS_QUEUE_URL"`
	ReminderEmailFrom   string `mapstructure:"REMINDER_EMAIL_FROM"`
	ReminderEmailTo     string `mapstructure:"REMINDER_EMAIL_TO"`
	OTelEndpoint        string `mapstructure:"OTEL_EXPORTER_ENDPOINT"`

	location *time.Location
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	// A missing .env is fine; real deployments use the pod environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("DB_HOST", "db")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "timeclock_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("IS_LOCAL_DEV", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DISPLAY_TIMEZONE", "UTC")
	v.SetDefault("ADMIN_BASE_URL", "/wp-admin/")
	v.SetDefault("META_NAMESPACE", model.DefaultNamespace)
	v.SetDefault("EVENT_TYPE", "etimeclockwp_clock")
	v.SetDefault("EVENT_STATUS", "publish")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	v.SetDefault("REMINDER_SQS_QUEUE_URL", "http://localstack:4566/000000000000/reminder-queue")
	v.SetDefault("REMINDER_EMAIL_FROM", "timeclock@factory.com")
	v.SetDefault("REMINDER_EMAIL_TO", "supervisors@factory.com")
	v.SetDefault("OTEL_EXPORTER_ENDPOINT", "jaeger:4317")

	// Read in environment variables that match the keys.
	v.AutomaticEnv()

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: unmarshal: %w", err)
	}
	err = config.Validate()
	return
}

// Validate normalizes values and resolves the display location.
func (c *Config) Validate() error {
	c.MetaNamespace = strings.TrimSpace(c.MetaNamespace)
	if c.MetaNamespace == "" {
		return errors.New("config: META_NAMESPACE must be set")
	}
	if c.EventType == "" {
		return errors.New("config: EVENT_TYPE must be set")
	}
	if _, err := url.Parse(c.AdminBaseURL); err != nil {
		return fmt.Errorf("config: invalid ADMIN_BASE_URL: %w", err)
	}

	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return fmt.Errorf("config: invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimezone, err)
	}
	c.location = loc
	return nil
}

// Location is the zone report times are rendered in.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// MetaKeys returns the metadata key names for the configured namespace.
func (c Config) MetaKeys() model.MetaKeys {
	return model.NewMetaKeys(c.MetaNamespace)
}

// DSN builds the PostgreSQL connection URL.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}
