package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"courtbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("COURTBOOK_API_KEY", "secret")
	path := writeFile(t, t.TempDir(), "config.yaml", `
api:
  base_url: http://localhost:8080
  api_key: ${COURTBOOK_API_KEY}
engine:
  timezone: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.API.APIKey)
	assert.Equal(t, 0.10, cfg.TaxRate())
	assert.Equal(t, 0.30, cfg.DepositRate())
	assert.Equal(t, 8, cfg.MaxParallelFetches())
	assert.Equal(t, "wallet", cfg.ProviderID())
	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Zero(t, cfg.CacheTTL())
	assert.Equal(t, time.UTC.String(), cfg.Location().String())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }},
		{"tax rate too high", func(c *Config) { c.Engine.TaxRate = ptr(1.0) }},
		{"negative deposit", func(c *Config) { c.Engine.DepositRate = ptr(-0.1) }},
		{"negative parallelism", func(c *Config) { c.Engine.MaxParallelFetches = -1 }},
		{"unknown timezone", func(c *Config) { c.Engine.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.API.BaseURL = "http://x"
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_ShippedConfigDisablesAvailabilityCache(t *testing.T) {
	t.Setenv("COURTBOOK_API_URL", "http://localhost:8080")

	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Zero(t, cfg.CacheTTL())
	assert.Equal(t, 0.10, cfg.TaxRate())
}

func ptr[T any](v T) *T { return &v }

func TestLoad_ExplicitZeroTaxRate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
api:
  base_url: http://localhost:8080
engine:
  tax_rate: 0
  deposit_rate: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Engine.TaxRate)
	assert.Zero(t, cfg.TaxRate())
	assert.Equal(t, 0.5, cfg.DepositRate())
}

const resourcesYAML = `
resources:
  - id: court-1
    kind: court
    name: Court 1
    is_active: true
    schedule:
      - days: [1, 2, 3, 4, 5]
        start: "06:00"
        end: "22:00"
    promotions:
      - id: p1
        name: Morning
        discount_type: percentage
        discount_value: 20
        valid_from: "2026-01-01T00:00:00Z"
        valid_to: "2027-01-01T00:00:00Z"
  - id: coach-1
    kind: coach
    name: Coach
    is_active: true
    schedule:
      - days: [7]
        start: "08:00"
        end: "12:00"
  - id: court-2
    name: Closed court
    is_active: false
`

func TestLoadResourcesConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "resources.yaml", resourcesYAML)

	cfg, err := LoadResourcesConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ResourcesConfig: 3 resources (2 active)", cfg.String())
	require.NotNil(t, cfg.ByID("court-2"))

	models := cfg.Models()
	require.Len(t, models, 2)

	court := models[0]
	assert.Equal(t, model.KindCourt, court.Kind)
	require.Len(t, court.Promotions, 1)
	assert.Equal(t, 20.0, court.Promotions[0].Value())
	assert.Equal(t, "court-1", court.Promotions[0].TargetID)
	assert.True(t, court.OpenOn(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)))  // Monday
	assert.False(t, court.OpenOn(time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC))) // Sunday

	coach := models[1]
	assert.Equal(t, []time.Weekday{time.Sunday}, coach.Schedule[0].Days)
}

func TestResourcesConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "resources: []"},
		{"duplicate id", "resources:\n  - id: a\n  - id: a\n"},
		{"bad kind", "resources:\n  - id: a\n    kind: pool\n"},
		{"bad day", "resources:\n  - id: a\n    schedule:\n      - days: [8]\n        start: \"06:00\"\n        end: \"07:00\"\n"},
		{"inverted window", "resources:\n  - id: a\n    schedule:\n      - days: [1]\n        start: \"09:00\"\n        end: \"08:00\"\n"},
		{"percentage over 100", "resources:\n  - id: a\n    promotions:\n      - id: p\n        discount_type: percentage\n        discount_value: 150\n        valid_from: \"2026-01-01T00:00:00Z\"\n        valid_to: \"2027-01-01T00:00:00Z\"\n"},
		{"bad promo date", "resources:\n  - id: a\n    promotions:\n      - id: p\n        discount_type: fixed\n        valid_from: yesterday\n        valid_to: \"2027-01-01T00:00:00Z\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "resources.yaml", tt.body)
			_, err := LoadResourcesConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestWatchFile_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "api:\n  base_url: http://x\nengine:\n  tax_rate: 0.1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Value
	require.NoError(t, WatchFile(ctx, path, 10*time.Millisecond, func(c *Config) { latest.Store(c.TaxRate()) }))
	assert.Equal(t, 0.1, latest.Load())

	writeFile(t, dir, "config.yaml", "api:\n  base_url: http://x\nengine:\n  tax_rate: 0.2\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool { return latest.Load() == 0.2 }, time.Second, 10*time.Millisecond)
}
