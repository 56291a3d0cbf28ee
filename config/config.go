// Package config collects every environment knob the pipeline reads.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Mode        string // "dev" or "prod"
	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	KafkaBroker       string
	NotificationTopic string

	PaystackSecretKey   string
	StripeSecretKey     string
	StripeWebhookSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	AdminEmails string
	APIKey      string

	FirebaseCredentialsFile string
	FirebaseProjectID       string

	WorkerCount int
}

// Load reads configuration from the environment. Gateway keys are
// selected by mode so a sandbox key can never leak into production.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Mode:        getEnv("APP_MODE", "dev"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBroker:       getEnv("KAFKA_BROKER", "localhost:9092"),
		NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "notification_events"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    getEnv("EMAIL_FROM", "orders@zeaper.com"),

		AdminEmails: os.Getenv("ADMIN_EMAILS"),
		APIKey:      os.Getenv("ADMIN_API_KEY"),

		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),

		WorkerCount: getEnvInt("WORKER_COUNT", 4),
	}

	if cfg.Mode == "prod" {
		cfg.PaystackSecretKey = os.Getenv("PAYSTACK_SECRET_KEY_PROD")
		cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY_PROD")
		cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET_PROD")
	} else {
		cfg.PaystackSecretKey = os.Getenv("PAYSTACK_SECRET_KEY_DEV")
		cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY_DEV")
		cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET_DEV")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			getEnv("DB_HOST", "localhost"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			getEnv("DB_PORT", "5432"),
		)
	}

	if cfg.PaystackSecretKey == "" && cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("no gateway secret configured for mode %q", cfg.Mode)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
