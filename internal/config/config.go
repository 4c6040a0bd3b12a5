package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL string

	SecretKey       string
	AccessTokenTTL  time.Duration
	LoginTokenTTL   time.Duration
	RefreshTokenTTL time.Duration
	EmailTokenTTL   time.Duration
	ResetTokenTTL   time.Duration

	AdminEmail    string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRPM int
	QuotaLimit   int
	QuotaWindow  time.Duration

	MailAPIURL     string
	MailAPIKey     string
	MailSender     string
	MailSenderName string

	AvatarRegion   string
	AvatarBucket   string
	AvatarEndpoint string

	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "contactvault"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SecretKey:       os.Getenv("SECRET_KEY_JWT"),
		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		LoginTokenTTL:   getDuration("LOGIN_TOKEN_TTL", 2*time.Hour),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		EmailTokenTTL:   getDuration("EMAIL_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:   getDuration("RESET_TOKEN_TTL", time.Hour),

		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		RateLimitRPM: getInt("RATE_LIMIT_RPM", 600),
		QuotaLimit:   getInt("QUOTA_LIMIT", 2),
		QuotaWindow:  getDuration("QUOTA_WINDOW", 5*time.Second),

		MailAPIURL:     getEnv("MAIL_API_URL", "https://api.brevo.com/v3/smtp/email"),
		MailAPIKey:     os.Getenv("MAIL_API_KEY"),
		MailSender:     getEnv("MAIL_SENDER", "noreply@contactvault.dev"),
		MailSenderName: getEnv("MAIL_SENDER_NAME", "Contact Vault"),

		AvatarRegion:   getEnv("AVATAR_S3_REGION", "us-east-1"),
		AvatarBucket:   getEnv("AVATAR_S3_BUCKET", "contactvault-avatars"),
		AvatarEndpoint: os.Getenv("AVATAR_S3_ENDPOINT"),

		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return Config{}, fmt.Errorf("SECRET_KEY_JWT is required")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return Config{}, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
