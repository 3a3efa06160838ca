package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string
	GRPCAddr string

	MySQLDSN  string
	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	JWTSecret   string
	TokenTTL    time.Duration
	AdminAPIKey string

	OperatorEmail  string
	MailFrom       string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	SendGridAPIKey string

	SessionCartTTL  time.Duration
	CheckoutLockTTL time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	NotifyWorkers   int
	NotifyQueueSize int
	OutboxInterval  time.Duration
	OutboxBatch     int

	CheckoutRate  float64
	CheckoutBurst int
}

// Load reads configuration from the environment, after an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),

		MySQLDSN:  getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true&multiStatements=true"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "orders.placed"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "storefront-notifications"),

		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		TokenTTL:    getDuration("TOKEN_TTL", 24*time.Hour),
		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		OperatorEmail:  getEnv("OPERATOR_EMAIL", "orders@storefront.local"),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@storefront.local"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPass:       os.Getenv("SMTP_PASS"),
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),

		SessionCartTTL:  getDuration("SESSION_CART_TTL", 7*24*time.Hour),
		CheckoutLockTTL: getDuration("CHECKOUT_LOCK_TTL", 30*time.Second),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		NotifyWorkers:   getInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getInt("NOTIFY_QUEUE_SIZE", 1000),
		OutboxInterval:  getDuration("OUTBOX_INTERVAL", time.Second),
		OutboxBatch:     getInt("OUTBOX_BATCH", 100),

		CheckoutRate:  getFloat("CHECKOUT_RATE", 1),
		CheckoutBurst: getInt("CHECKOUT_BURST", 3),
	}
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
