package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every process-wide setting. It is loaded once at startup and
// injected into the components that need it; nothing reads the environment
// after Load returns.
type Config struct {
	Port string
	Env  string // "development" or "production"

	MongoURI string
	MongoDB  string

	JWTSecret    string
	JWTExpiresIn time.Duration
	JWTIssuer    string

	BcryptCost    int
	ResetTokenTTL time.Duration

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads .env (if present) and the environment into a Config.
// It fails fast on the settings the server cannot run without.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDB:         getEnv("MONGO_DB", "go-tours"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiresIn:    getDurationMin("JWT_EXP_MIN", 90*24*60),
		JWTIssuer:       "go-tours-server",
		BcryptCost:      getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
		ResetTokenTTL:   getDurationMin("RESET_TOKEN_TTL_MIN", 10),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        os.Getenv("SMTP_PORT"),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getDurationMin("RATE_LIMIT_WINDOW_MIN", 60),
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI not set in env")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET not set in env")
	}
	return cfg, nil
}

// Production reports whether the server runs in a production-like mode,
// which decides how much error detail leaks to clients.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationMin(key string, fallbackMinutes int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMinutes)) * time.Minute
}
