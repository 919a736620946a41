// Package config loads service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTPAddr    string

	DatabaseDSN   string
	RunMigrations bool
	StoreTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string

	JWTSecret        string
	TelegramBotToken string

	// InstanceID tags envelopes this process publishes to the broker.
	InstanceID string
}

// Load reads the configuration. A missing .env file is not an error.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	loadedEnv := godotenv.Load() == nil

	cfg := &Config{
		Environment:      getEnv("ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		InstanceID:       os.Getenv("INSTANCE_ID"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, loadedEnv, err
	}
	if cfg.RunMigrations, err = getBool("RUN_MIGRATIONS", true); err != nil {
		return nil, loadedEnv, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, loadedEnv, err
	}

	if cfg.DatabaseDSN == "" {
		return nil, loadedEnv, fmt.Errorf("DATABASE_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, loadedEnv, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.New().String()
	}

	return cfg, loadedEnv, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 5s: %w", key, err)
	}
	return d, nil
}
