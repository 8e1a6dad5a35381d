// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	// DB
	DBHost    string
	DBPort    string
	DBUser    string
	DBPass    string
	DBName    string
	DBSSLMode string

	// Tokens & sessions
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	SessionTTL      time.Duration
	BcryptCost      int

	// Login throttling (Redis; empty addr disables the limiter)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// SMTP (empty host = log-only email stub)
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPFromName string

	// Object storage (S3-compatible)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StoragePublicURL string
	StorageRegion    string

	// Media processing & background sweeps
	MaxUploadBytes  int64
	WorkerInterval  time.Duration
	JobMaxAttempts  int
	SweepInterval   time.Duration
	NotificationTTL time.Duration

	// Frontend base URL used in email links
	AppBaseURL string

	// CORS
	AllowedOrigins string

	// Firebase service account JSON for push (empty disables FCM)
	FirebaseCredentialsJSON string
}

func Load() *Config {
	if os.Getenv("ENV") != "production" {
		_ = godotenv.Load() // optional .env for local
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}

	return &Config{
		ServerPort: getEnv("PORT", "8080"),

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    getEnv("DB_PORT", "5432"),
		DBUser:    getEnv("DB_USER", "postgres"),
		DBPass:    getEnv("DB_PASS", "postgres"),
		DBName:    getEnv("DB_NAME", "social_db"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),

		JWTSecret:       secret,
		JWTIssuer:       getEnv("JWT_ISSUER", "social-service"),
		JWTAudience:     getEnv("JWT_AUDIENCE", "social-clients"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ResetTokenTTL:   getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		BcryptCost:      getEnvInt("BCRYPT_COST", 12),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:      getEnvDuration("LOGIN_WINDOW", 15*time.Minute),

		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPass:     os.Getenv("SMTP_PASS"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Social"),

		StorageEndpoint:  os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("STORAGE_ACCESS_KEY_ID"),
		StorageSecretKey: os.Getenv("STORAGE_ACCESS_KEY_SECRET"),
		StorageBucket:    os.Getenv("STORAGE_BUCKET"),
		StoragePublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
		StorageRegion:    getEnv("STORAGE_REGION", "auto"),

		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		WorkerInterval:  getEnvDuration("WORKER_INTERVAL", 5*time.Second),
		JobMaxAttempts:  getEnvInt("JOB_MAX_ATTEMPTS", 3),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		NotificationTTL: getEnvDuration("NOTIFICATION_TTL", 90*24*time.Hour),

		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),

		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("❌ Invalid %s: %v", key, err)
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Fatalf("❌ Invalid %s: %v", key, err)
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("❌ Invalid %s: %v", key, err)
	}
	return d
}
