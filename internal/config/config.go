// Package config loads engine configuration from a YAML file with
// environment overrides. A missing file yields the defaults, so the engine
// can run with nothing but GIFTERD_ADMIN set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when GIFTERD_CONFIG is unset.
const DefaultPath = "config/gifterd.yaml"

// Config is the full engine configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// EngineConfig configures the gift engine and card marketplace.
type EngineConfig struct {
	// Admin is the privileged identity: registry cuts, card approval,
	// tax withdrawal.
	Admin string `yaml:"admin"`

	// Treasury custodies settled card fees; Escrow custodies unclaimed gift
	// bundles; OracleAccount holds the exchange's token inventory.
	Treasury      string `yaml:"treasury"`
	Escrow        string `yaml:"escrow"`
	OracleAccount string `yaml:"oracle_account"`

	// TaxBps is the marketplace tax in basis points.
	TaxBps uint64 `yaml:"tax_bps"`

	// AllowedFeeTokens lists the token contracts cards may charge fees in.
	// The empty string entry allows native-denominated fees.
	AllowedFeeTokens []string `yaml:"allowed_fee_tokens"`

	CardBaseURI        string `yaml:"card_base_uri"`
	GiftBaseURI        string `yaml:"gift_base_uri"`
	DefaultContentHash string `yaml:"default_content_hash"`

	// EventBuffer is how many recent events the in-process recorder keeps.
	EventBuffer int `yaml:"event_buffer"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig mirrors pkg/logger's settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Treasury:      "treasury",
			Escrow:        "escrow",
			OracleAccount: "oracle",
			TaxBps:        1000,
			EventBuffer:   256,
		},
		Database: DatabaseConfig{Driver: "memory"},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics:  MetricsConfig{Enabled: true, Addr: ":9091"},
	}
}

// Load reads the config file named by GIFTERD_CONFIG (or DefaultPath),
// applies environment overrides and validates the result. A .env file in the
// working directory is honoured for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("GIFTERD_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load with an explicit file path. A missing file is not an
// error; the defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("GIFTERD_ADMIN")); v != "" {
		c.Engine.Admin = v
	}
	if v := strings.TrimSpace(os.Getenv("GIFTERD_TAX_BPS")); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Engine.TaxBps = bps
		}
	}
	if v := strings.TrimSpace(os.Getenv("GIFTERD_FEE_TOKENS")); v != "" {
		c.Engine.AllowedFeeTokens = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ADDR")); v != "" {
		c.Metrics.Addr = v
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Engine.Admin == "" {
		return fmt.Errorf("config: engine admin is required")
	}
	if c.Engine.TaxBps > 10000 {
		return fmt.Errorf("config: tax_bps %d exceeds 10000", c.Engine.TaxBps)
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: postgres driver needs a dsn")
		}
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Engine.EventBuffer < 0 {
		return fmt.Errorf("config: event_buffer must not be negative")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
