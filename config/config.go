package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver string
	DBSource string

	JWTSecret     string
	TokenTTL      time.Duration
	EmailTokenTTL time.Duration

	UploadDir        string
	PublicUploadPath string
	CloudinaryURL    string

	ClientURL       string
	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string

	CORSOrigins        []string
	RequireCoordinates bool
	AuthRateLimit      float64
	AuthRateBurst      int

	MaintenanceSchedule string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "5000"),
		GinMode:             getEnv("GIN_MODE", ""),
		DBDriver:            getEnv("DB_DRIVER", "sqlite"),
		DBSource:            getEnv("DB_SOURCE", "restaurant_reviews.db"),
		JWTSecret:           getEnv("JWT_SECRET", "restaurant_reviews_dev_secret"),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		PublicUploadPath:    getEnv("PUBLIC_UPLOAD_PATH", "/uploads"),
		CloudinaryURL:       os.Getenv("CLOUDINARY_URL"),
		ClientURL:           strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		BrevoAPIKey:         os.Getenv("BREVO_API_KEY"),
		EmailSender:         os.Getenv("EMAIL_SENDER"),
		EmailSenderName:     getEnv("EMAIL_SENDER_NAME", "Restaurant Reviews"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:5000")),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "@every 1h"),
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:          os.Getenv("ADMIN_EMAIL"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(getEnv("TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if cfg.EmailTokenTTL, err = time.ParseDuration(getEnv("EMAIL_TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("EMAIL_TOKEN_TTL: %w", err)
	}
	if cfg.RequireCoordinates, err = strconv.ParseBool(getEnv("REQUIRE_COORDINATES", "true")); err != nil {
		return nil, fmt.Errorf("REQUIRE_COORDINATES: %w", err)
	}
	if cfg.AuthRateLimit, err = strconv.ParseFloat(getEnv("AUTH_RATE_LIMIT", "5"), 64); err != nil {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT: %w", err)
	}
	if cfg.AuthRateBurst, err = strconv.Atoi(getEnv("AUTH_RATE_BURST", "10")); err != nil {
		return nil, fmt.Errorf("AUTH_RATE_BURST: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
