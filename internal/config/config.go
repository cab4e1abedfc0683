package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "default_secret"

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	Database  DatabaseConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Auth      AuthConfig
	Email     EmailConfig
	Stripe    StripeConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cron      CronConfig

	// EnvFileLoaded reports whether a .env file was found
	EnvFileLoaded bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret            string
	ExpiresIn         time.Duration
	CookieExpiresDays int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// AuthConfig holds password reset behaviour
type AuthConfig struct {
	ResetTokenTTL time.Duration
	// ConcealUnknownEmail answers forgot-password requests for unknown
	// addresses the same way as for known ones
	ConcealUnknownEmail bool
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StripeConfig holds payment provider configuration
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// RedisConfig holds the optional rate limiter store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// RateLimitConfig holds request limits
type RateLimitConfig struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

// CronConfig holds background job schedules
type CronConfig struct {
	Enabled              bool
	RatingsSchedule      string
	ResetCleanupSchedule string
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	envLoaded := godotenv.Load() == nil

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:       appMode,
		Port:          getEnv("PORT", "3000"),
		Database:      loadDatabaseConfig(appMode),
		JWT:           loadJWTConfig(appMode),
		Cookie:        loadCookieConfig(appMode),
		Auth:          loadAuthConfig(),
		Email:         loadEmailConfig(appMode),
		Stripe:        loadStripeConfig(appMode),
		Redis:         loadRedisConfig(),
		RateLimit:     loadRateLimitConfig(),
		Cron:          loadCronConfig(),
		EnvFileLoaded: envLoaded,
	}

	if config.IsProd() && config.JWT.Secret == defaultJWTSecret {
		return nil, fmt.Errorf("PROD_JWT_SECRET must be set in prod mode")
	}
	if config.JWT.ExpiresIn <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}

	return config, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "natours"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	return JWTConfig{
		Secret:            getEnv(prefix+"JWT_SECRET", defaultJWTSecret),
		ExpiresIn:         getDurationEnv("JWT_EXPIRES_IN", 90*24*time.Hour),
		CookieExpiresDays: getIntEnv("JWT_COOKIE_EXPIRES_IN", 90),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := modePrefix(mode)

	return CookieConfig{
		Secure:   getBoolEnv(prefix+"COOKIE_SECURE", mode == "prod"),
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		ResetTokenTTL:       getDurationEnv("RESET_TOKEN_TTL", 10*time.Minute),
		ConcealUnknownEmail: getBoolEnv("RESET_CONCEAL_UNKNOWN_EMAIL", false),
	}
}

func loadEmailConfig(mode string) EmailConfig {
	prefix := modePrefix(mode)

	return EmailConfig{
		Host:     getEnv(prefix+"EMAIL_HOST", "localhost"),
		Port:     getIntEnv(prefix+"EMAIL_PORT", 1025),
		Username: getEnv(prefix+"EMAIL_USERNAME", ""),
		Password: getEnv(prefix+"EMAIL_PASSWORD", ""),
		From:     getEnv("EMAIL_FROM", "Natours <hello@natours.io>"),
	}
}

func loadStripeConfig(mode string) StripeConfig {
	prefix := modePrefix(mode)

	return StripeConfig{
		SecretKey:     getEnv(prefix+"STRIPE_SECRET_KEY", ""),
		WebhookSecret: getEnv(prefix+"STRIPE_WEBHOOK_SECRET", ""),
		Currency:      getEnv("STRIPE_CURRENCY", "usd"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getIntEnv("REDIS_DB", 0),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		Max:     getIntEnv("RATE_LIMIT_MAX", 100),
		Window:  getDurationEnv("RATE_LIMIT_WINDOW", time.Hour),
	}
}

func loadCronConfig() CronConfig {
	return CronConfig{
		Enabled:              getBoolEnv("CRON_ENABLED", true),
		RatingsSchedule:      getEnv("CRON_RATINGS_SCHEDULE", "0 3 * * *"),
		ResetCleanupSchedule: getEnv("CRON_RESET_CLEANUP_SCHEDULE", "*/15 * * * *"),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("36h") and whole days ("90d")
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://natours.io"
	}
	return origins
}
