// Package config assembles runtime settings from defaults, an optional YAML
// file, an optional .env file and the process environment, in that order.
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
	"gopkg.in/yaml.v3"
)

// #region types

// Config is the full set of knobs for the aura binary.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Generator GeneratorConfig `yaml:"generator"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects the cache backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"` // sqlite, memory or redis
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
}

// GeneratorConfig selects and configures the insight generator.
type GeneratorConfig struct {
	Kind          string        `yaml:"kind"` // gemini or grpc
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	Endpoint      string        `yaml:"endpoint"`
	Addr          string        `yaml:"addr"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
}

// RefreshConfig tunes the refresh controller.
type RefreshConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// #endregion types

// #region defaults

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "aura.db",
		},
		Generator: GeneratorConfig{
			Kind:    "gemini",
			Model:   "gemini-3-flash-preview",
			Addr:    "localhost:50051",
			Timeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			RetryBackoff: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// #endregion defaults

// #region load

// Load builds a Config. path names an optional YAML file; envFile names an
// optional dotenv file. Missing files are not errors, malformed ones are.
// Variables already set in the environment win over the dotenv file.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	cfg.Store.Backend = envOr("AURA_STORE", cfg.Store.Backend)
	cfg.Store.Path = envOr("AURA_DB", cfg.Store.Path)
	cfg.Store.RedisURL = envOr("AURA_REDIS_URL", cfg.Store.RedisURL)

	cfg.Generator.Kind = envOr("AURA_GENERATOR", cfg.Generator.Kind)
	cfg.Generator.APIKey = envOr("GEMINI_API_KEY", envOr("API_KEY", cfg.Generator.APIKey))
	cfg.Generator.Model = envOr("AURA_GEMINI_MODEL", cfg.Generator.Model)
	cfg.Generator.Endpoint = envOr("AURA_GEMINI_ENDPOINT", cfg.Generator.Endpoint)
	cfg.Generator.Addr = envOr("AURA_GENERATOR_ADDR", cfg.Generator.Addr)

	cfg.Log.Level = envOr("AURA_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("AURA_LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.Generator.Timeout, err = envDuration("AURA_GENERATE_TIMEOUT", cfg.Generator.Timeout); err != nil {
		return err
	}
	if cfg.Refresh.RetryBackoff, err = envDuration("AURA_RETRY_BACKOFF", cfg.Refresh.RetryBackoff); err != nil {
		return err
	}
	if v := os.Getenv("AURA_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AURA_RETRY_ATTEMPTS: %w", err)
		}
		cfg.Refresh.RetryAttempts = n
	}
	if v := os.Getenv("AURA_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AURA_RATE_LIMIT: %w", err)
		}
		cfg.Generator.RatePerSecond = f
	}
	return nil
}

// #endregion load

// #region validate

// Validate rejects settings that no component could act on.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "", "sqlite", "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if strings.EqualFold(c.Store.Backend, "redis") && c.Store.RedisURL == "" {
		return errors.New("redis backend requires a redis url")
	}
	switch strings.ToLower(c.Generator.Kind) {
	case "gemini", "grpc":
	default:
		return fmt.Errorf("unknown generator %q", c.Generator.Kind)
	}
	if c.Refresh.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be >= 0, got %d", c.Refresh.RetryAttempts)
	}
	return nil
}

// #endregion validate

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// #endregion helpers
