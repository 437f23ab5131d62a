package config

import (
	"os"
	"strings"
	"time"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string

	// ReservationTTL is how long a pending order holds its stock
	// before the compensation timer fires.
	ReservationTTL time.Duration
	// ExpirySweepInterval controls the periodic sweep that picks up
	// reservations whose in-process timer was lost to a restart.
	ExpirySweepInterval time.Duration
	OutboxPollInterval  time.Duration
	// GuestCartTTL bounds how long an unauthenticated cart survives in
	// redis without activity.
	GuestCartTTL time.Duration

	PaymentAPIURL    string
	PaymentAPIKey    string
	PaymentReturnURL string
	InventoryAPIURL  string

	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	SenderEmail   string
	OperatorEmail string

	// KafkaBrokers is optional; empty disables lifecycle events.
	KafkaBrokers []string

	MigrationsPath string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		ReservationTTL:      getDuration("RESERVATION_TTL", 5*time.Minute),
		ExpirySweepInterval: getDuration("EXPIRY_SWEEP_INTERVAL", 30*time.Second),
		OutboxPollInterval:  getDuration("OUTBOX_POLL_INTERVAL", time.Second),
		GuestCartTTL:        getDuration("GUEST_CART_TTL", 72*time.Hour),
		PaymentAPIURL:       getEnv("PAYMENT_API_URL", "https://webpay3gint.transbank.cl"),
		PaymentAPIKey:       os.Getenv("PAYMENT_API_KEY"),
		PaymentReturnURL:    getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/webpay/return"),
		InventoryAPIURL:     os.Getenv("INVENTORY_API_URL"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getEnv("SMTP_PORT", "587"),
		SMTPUser:            os.Getenv("SMTP_USER"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SenderEmail:         getEnv("SENDER_EMAIL", "no-reply@example.com"),
		OperatorEmail:       os.Getenv("OPERATOR_EMAIL"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "./migrations"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
