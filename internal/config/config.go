// Package config loads kinlink's layered configuration: command-line
// flags override environment variables, which override a YAML config
// file, which overrides built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ProviderDefaults holds a provider's rate-limit delay bounds.
type ProviderDefaults struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Known provider names.
const (
	FamilySearch = "familysearch"
	Ancestry     = "ancestry"
	WikiTree     = "wikitree"
	TwentyThreeAndMe = "23andme"
)

// defaultProviderDelays holds each provider's politeness window.
var defaultProviderDelays = map[string]ProviderDefaults{
	FamilySearch:     {MinDelay: 500 * time.Millisecond, MaxDelay: 1500 * time.Millisecond},
	Ancestry:         {MinDelay: 1000 * time.Millisecond, MaxDelay: 3000 * time.Millisecond},
	WikiTree:         {MinDelay: 500 * time.Millisecond, MaxDelay: 1500 * time.Millisecond},
	TwentyThreeAndMe: {MinDelay: 1000 * time.Millisecond, MaxDelay: 3000 * time.Millisecond},
}

// ProviderDelays returns the configured min/max rate-limit delay for a
// provider, falling back to the package default when not overridden.
func (c *Config) ProviderDelays(provider string) ProviderDefaults {
	if d, ok := c.overrides[provider]; ok {
		return d
	}
	if d, ok := defaultProviderDelays[provider]; ok {
		return d
	}
	return ProviderDefaults{MinDelay: 500 * time.Millisecond, MaxDelay: 1500 * time.Millisecond}
}

// Config is the resolved, immutable application configuration.
type Config struct {
	DataDir       string
	DBName        string
	GeocodeMinGap time.Duration // default 1.1s, Nominatim-style politeness
	FetchTimeout  time.Duration // per-request deadline, default 30s
	overrides     map[string]ProviderDefaults
}

// DBPath returns the path to the embedded database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBName+".db")
}

// ProviderCacheDir returns <data_dir>/provider-cache/<provider>.
func (c *Config) ProviderCacheDir(provider string) string {
	return filepath.Join(c.DataDir, "provider-cache", provider)
}

// BlobDir returns <data_dir>/blobs.
func (c *Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// Load resolves configuration from flags (via an already-populated
// *viper.Viper, typically bound to cobra flags by the caller), the
// environment (KINLINK_* prefix), a config.yaml in dataDir, and defaults.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("KINLINK")
	v.AutomaticEnv()

	v.SetDefault("data-dir", defaultDataDir())
	v.SetDefault("db-name", "kinlink")
	v.SetDefault("geocode-min-gap", "1.1s")
	v.SetDefault("fetch-timeout", "30s")

	dataDir := v.GetString("data-dir")
	yamlPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		v.SetConfigFile(yamlPath)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
	}

	geoGap, err := time.ParseDuration(v.GetString("geocode-min-gap"))
	if err != nil {
		return nil, fmt.Errorf("config: geocode-min-gap: %w", err)
	}
	fetchTimeout, err := time.ParseDuration(v.GetString("fetch-timeout"))
	if err != nil {
		return nil, fmt.Errorf("config: fetch-timeout: %w", err)
	}

	cfg := &Config{
		DataDir:       dataDir,
		DBName:        v.GetString("db-name"),
		GeocodeMinGap: geoGap,
		FetchTimeout:  fetchTimeout,
		overrides:     map[string]ProviderDefaults{},
	}

	var providerCfg struct {
		Providers map[string]struct {
			MinDelayMS int `mapstructure:"min_delay_ms"`
			MaxDelayMS int `mapstructure:"max_delay_ms"`
		} `mapstructure:"providers"`
	}
	if err := v.Unmarshal(&providerCfg); err == nil {
		for name, p := range providerCfg.Providers {
			if p.MinDelayMS > 0 && p.MaxDelayMS > 0 {
				cfg.overrides[name] = ProviderDefaults{
					MinDelay: time.Duration(p.MinDelayMS) * time.Millisecond,
					MaxDelay: time.Duration(p.MaxDelayMS) * time.Millisecond,
				}
			}
		}
	}

	return cfg, nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".kinlink")
	}
	return ".kinlink"
}
