package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		Token           string  `yaml:"token"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		RateBurst       int     `yaml:"rate_burst"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Engine struct {
		Timezone           string   `yaml:"timezone"`
		TaxRate            *float64 `yaml:"tax_rate"`
		DepositRate        *float64 `yaml:"deposit_rate"`
		MaxParallelFetches int      `yaml:"max_parallel_fetches"`
		ProviderID         string   `yaml:"provider_id"`
		ResourcesPath      string   `yaml:"resources_path"`
	} `yaml:"engine"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Load reads the YAML config at path. A .env file next to the process, if
// present, is loaded first so ${ENV_VAR} placeholders can reference it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks ranges that would otherwise silently misprice a booking.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if r := c.Engine.TaxRate; r != nil && (*r < 0 || *r >= 1) {
		return fmt.Errorf("engine.tax_rate must be within [0,1), got %v", *r)
	}
	if r := c.Engine.DepositRate; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("engine.deposit_rate must be within [0,1], got %v", *r)
	}
	if c.Engine.MaxParallelFetches < 0 {
		return fmt.Errorf("engine.max_parallel_fetches cannot be negative")
	}
	if c.Engine.Timezone != "" {
		if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
			return fmt.Errorf("engine.timezone: %w", err)
		}
	}
	return nil
}

// Location returns the engine time zone, local time when unset.
func (c *Config) Location() *time.Location {
	if c.Engine.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TaxRate is 0.10 when tax_rate is absent. An explicit 0 disables tax.
func (c *Config) TaxRate() float64 {
	if c.Engine.TaxRate == nil {
		return 0.10
	}
	return *c.Engine.TaxRate
}

// DepositRate is 0.30 when deposit_rate is absent.
func (c *Config) DepositRate() float64 {
	if c.Engine.DepositRate == nil {
		return 0.30
	}
	return *c.Engine.DepositRate
}

func (c *Config) MaxParallelFetches() int {
	if c.Engine.MaxParallelFetches <= 0 {
		return 8
	}
	return c.Engine.MaxParallelFetches
}

func (c *Config) ProviderID() string {
	if c.Engine.ProviderID == "" {
		return "wallet"
	}
	return c.Engine.ProviderID
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL is the availability cache lifetime. Zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}
