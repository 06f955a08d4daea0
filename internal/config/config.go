package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	APIURL    string
	JWTSecret string
	JWTIssuer string

	PendingStore string
	PendingTTL   time.Duration
	DB_DSN       string
	RedisURL     string

	MaxEarliestContributors int
	MaxStars                int
	UpstreamTimeout         time.Duration

	LoginPath    string
	CookieSecure bool

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:         getEnv("APP_PORT", "8080"),
		APIURL:       getEnv("API_URL", "http://localhost:8000"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", ""),
		PendingStore: getEnv("PENDING_STORE", "memory"),
		DB_DSN:       getEnv("DB_DSN", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		LoginPath:    getEnv("LOGIN_PATH", "/login"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.PendingTTL, err = getDuration("PENDING_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxEarliestContributors, err = getInt("MAX_EARLIEST_CONTRIBUTORS", 10); err != nil {
		return Config{}, err
	}
	if cfg.MaxStars, err = getInt("MAX_STARS", 3); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE", true); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API_URL is required")
	}
	switch c.PendingStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when PENDING_STORE=redis")
		}
	case "postgres":
		if c.DB_DSN == "" {
			return fmt.Errorf("DB_DSN is required when PENDING_STORE=postgres")
		}
	default:
		return fmt.Errorf("PENDING_STORE must be memory, redis or postgres, got %q", c.PendingStore)
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_TTL must be positive")
	}
	if c.MaxEarliestContributors <= 0 {
		return fmt.Errorf("MAX_EARLIEST_CONTRIBUTORS must be positive")
	}
	if c.MaxStars <= 0 {
		return fmt.Errorf("MAX_STARS must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
