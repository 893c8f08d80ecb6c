package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Catalog     CatalogConfig     `koanf:"catalog"`
	Recommender RecommenderConfig `koanf:"recommender"`
	Confidence  ConfidenceConfig  `koanf:"confidence"`
	Observation ObservationConfig `koanf:"observation"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PatternTTL   time.Duration `koanf:"pattern_ttl"`
}

// CatalogConfig is the admin-maintained license price list, keyed by tier
// name in monthly currency units.
type CatalogConfig struct {
	Version  string             `koanf:"version"`
	Currency string             `koanf:"currency"`
	Prices   map[string]float64 `koanf:"prices"`
}

type RecommenderConfig struct {
	AlgorithmID      string `koanf:"algorithm_id"`
	LogicVersion     string `koanf:"logic_version"`
	DefaultTopK      int    `koanf:"default_top_k"`
	MaxRequiredItems int    `koanf:"max_required_items"`
}

// ConfidenceConfig carries the per-category confidence deltas and circuit
// breaker settings. The deltas come from operational documentation and are
// configuration, not code constants.
type ConfidenceConfig struct {
	Window           time.Duration      `koanf:"window"`
	BreakerThreshold int                `koanf:"breaker_threshold"`
	Deltas           map[string]float64 `koanf:"deltas"`
}

type ObservationConfig struct {
	MinObservationDays int     `koanf:"min_observation_days"`
	MinCoverage        float64 `koanf:"min_coverage"`
	AccuracyThreshold  float64 `koanf:"accuracy_threshold"`
}

// Defaults returns the built-in configuration every deployment starts from
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PatternTTL:   5 * time.Minute,
		},
		Catalog: CatalogConfig{
			Version:  "2025-01",
			Currency: "USD",
			Prices: map[string]float64{
				"none":        0,
				"team_member": 8,
				"operational": 35,
				"functional":  70,
				"enterprise":  95,
			},
		},
		Recommender: RecommenderConfig{
			AlgorithmID:      "greedy-cover",
			LogicVersion:     "1",
			DefaultTopK:      3,
			MaxRequiredItems: 500,
		},
		Confidence: ConfidenceConfig{
			Window:           90 * 24 * time.Hour,
			BreakerThreshold: 3,
			Deltas: map[string]float64{
				"algorithm_error":    0.20,
				"data_quality":       0.10,
				"business_exception": 0.10,
				"seasonal":           0.15,
				"user_preference":    0.00,
			},
		},
		Observation: ObservationConfig{
			MinObservationDays: 30,
			MinCoverage:        0.80,
			AccuracyThreshold:  0.95,
		},
	}
}

// Load builds the effective configuration: struct defaults, then the yaml
// file (optional unless a path is given explicitly), then ADVISOR_-prefixed
// environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = "configs/config.yaml"
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("ADVISOR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ADVISOR_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
