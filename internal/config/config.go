package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"library/internal/infrastructure/database"
)

type Config struct {
	HTTPPort    string
	CORSOrigins []string
	Location    *time.Location

	DB database.DBConfig

	KafkaBrokers             []string
	KafkaNotificationsTopic  string
	KafkaCheckoutEventsTopic string
	KafkaConsumerGroup       string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
	OutboxBatchSize    int

	StripeSecretKey  string
	StripeTimeout    time.Duration
	StripeSuccessURL string
	StripeCancelURL  string
	StripeCurrency   string

	JWTSecret string

	OverdueCheckInterval time.Duration
	SessionCheckInterval time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", "8080")
	cfg.CORSOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"})

	tz := getEnvOrDefault("LIBRARY_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid LIBRARY_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	cfg.DB = database.DBConfig{
		Host:            getEnvOrDefault("LIBRARY_DB_HOST", "localhost"),
		Port:            getEnvAsInt("LIBRARY_DB_PORT", 5432),
		User:            getEnvOrDefault("LIBRARY_DB_USER", "user"),
		Password:        getEnvOrDefault("LIBRARY_DB_PASSWORD", "password"),
		DBName:          getEnvOrDefault("LIBRARY_DB_NAME", "library_db"),
		SSLMode:         getEnvOrDefault("LIBRARY_DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("LIBRARY_DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvAsInt("LIBRARY_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("LIBRARY_DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}

	cfg.KafkaBrokers = getEnvAsList("KAFKA_BROKER_URL", []string{"localhost:9092"})
	cfg.KafkaNotificationsTopic = getEnvOrDefault("KAFKA_NOTIFICATIONS_TOPIC", "library_notifications")
	cfg.KafkaCheckoutEventsTopic = getEnvOrDefault("KAFKA_CHECKOUT_EVENTS_TOPIC", "checkout_session_events")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "library-service-group")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 5*time.Second)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.StripeSecretKey = getEnvOrDefault("STRIPE_SECRET_KEY", "")
	cfg.StripeTimeout = getEnvAsDuration("STRIPE_TIMEOUT", 10*time.Second)
	cfg.StripeSuccessURL = getEnvOrDefault("STRIPE_SUCCESS_URL", "http://localhost:8080/payments/success")
	cfg.StripeCancelURL = getEnvOrDefault("STRIPE_CANCEL_URL", "http://localhost:8080/payments/cancel")
	cfg.StripeCurrency = getEnvOrDefault("STRIPE_CURRENCY", "usd")

	cfg.JWTSecret = getEnvOrDefault("JWT_SECRET", "")

	cfg.OverdueCheckInterval = getEnvAsDuration("OVERDUE_CHECK_INTERVAL", 24*time.Hour)
	cfg.SessionCheckInterval = getEnvAsDuration("SESSION_CHECK_INTERVAL", 1*time.Minute)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName, c.DB.SSLMode)
}

// Now returns the current time in the library's time zone.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
