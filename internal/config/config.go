package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is used when Load is called with an empty path.
const ConfigPath = "seekite.yaml"

// Config represents configuration loaded from YAML plus environment overrides.
type Config struct {
	Addr              string        `yaml:"addr"`
	DatabaseDriver    string        `yaml:"databaseDriver"`
	DatabaseURL       string        `yaml:"databaseURL"`
	JWTSecret         string        `yaml:"jwtSecret"`
	TokenTTL          time.Duration `yaml:"tokenTTL"`
	RedisURL          string        `yaml:"redisURL"`
	LogLevel          string        `yaml:"logLevel"`
	LeaderOnlyTopics  bool          `yaml:"leaderOnlyTopics"`
	AuthRatePerMinute int           `yaml:"authRatePerMinute"`
	AuthBurst         int           `yaml:"authBurst"`
	SecureCookies     bool          `yaml:"secureCookies"`
}

// Secrets shipped in sample files. Starting with one of these is refused.
var insecureSecrets = map[string]bool{
	"change-this-secret-in-production":        true,
	"change-me-use-a-long-random-string-here": true,
	"change-me-use-a-long-random-string":      true,
}

func defaults() Config {
	return Config{
		Addr:              ":8080",
		DatabaseDriver:    "sqlite",
		DatabaseURL:       "./data/seekite.db",
		TokenTTL:          30 * 24 * time.Hour,
		LogLevel:          "info",
		AuthRatePerMinute: 10,
		AuthBurst:         5,
	}
}

// Load reads config from path (defaults to seekite.yaml). A missing file is
// not an error; environment variables are applied on top either way.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SEEKITE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.DatabaseDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	if v := os.Getenv("LEADER_ONLY_TOPICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: LEADER_ONLY_TOPICS: %w", err)
		}
		cfg.LeaderOnlyTopics = b
	}
	if v := os.Getenv("AUTH_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: AUTH_RATE_PER_MINUTE: %w", err)
		}
		cfg.AuthRatePerMinute = n
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Addr == "" {
		return errors.New("config: addr is required (set in seekite.yaml or SEEKITE_ADDR)")
	}
	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: databaseDriver must be sqlite or postgres, got %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in seekite.yaml or DATABASE_URL)")
	}
	if cfg.JWTSecret == "" || insecureSecrets[cfg.JWTSecret] {
		return errors.New("config: jwtSecret is not set or is using an insecure default value " +
			"(generate one with: openssl rand -hex 32)")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("config: tokenTTL must be positive")
	}
	if cfg.AuthRatePerMinute <= 0 || cfg.AuthBurst <= 0 {
		return errors.New("config: authRatePerMinute and authBurst must be positive")
	}
	return nil
}
