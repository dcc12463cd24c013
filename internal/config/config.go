// Package config loads the indexer's runtime configuration from a .env
// file plus environment variables (§1 ambient concern; no [MODULE]
// defines this, every extractor and the Query Surface need it). Grounded
// on the teacher's walletserver/config (godotenv.Load + os.Getenv
// defaults) and pkg/config (viper.Unmarshal into a mapstructure-tagged
// struct) combined: godotenv for the .env file, viper for env-var
// binding and defaults, mapstructure tags on the target struct.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Extractor is one configured (name, chain, module) feed the indexer
// should run (§4.3). Feeds come from repeated --extractor flags or from a
// YAML file read by LoadExtractors; Config.Extractors is not filled from
// the environment.
type Extractor struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Chain  string `mapstructure:"chain" yaml:"chain"`
	Module string `mapstructure:"module" yaml:"module"`
	Kind   string `mapstructure:"kind" yaml:"kind"` // "contract" or "entity"
}

// extractorsFile is the top-level shape of an extractors YAML file, one
// entry per feed the indexer should run.
type extractorsFile struct {
	Extractors []Extractor `yaml:"extractors"`
}

// LoadExtractors reads a YAML file listing extractor feeds, an alternative
// to passing one --extractor flag per feed on the command line when a
// deployment runs enough of them to warrant a checked-in file.
func LoadExtractors(path string) ([]Extractor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading extractors file %s: %w", path, err)
	}
	var f extractorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing extractors file %s: %w", path, err)
	}
	return f.Extractors, nil
}

// Config is the unified indexer configuration, analogous to the
// teacher's pkg/config.Config but scoped to this service's concerns.
type Config struct {
	DatabaseURL        string        `mapstructure:"database_url"`
	SubstreamsEndpoint string        `mapstructure:"substreams_endpoint"`
	SubstreamsAPIToken string        `mapstructure:"substreams_api_token"`
	RPCURL             string        `mapstructure:"rpc_url"`
	APIAddr            string        `mapstructure:"api_addr"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	LogLevel           string        `mapstructure:"log_level"`
	TokenCacheSize     int           `mapstructure:"token_cache_size"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`

	Extractors []Extractor `mapstructure:"-"`
}

// Load reads envPath (if present; a missing .env is not an error, same
// as the teacher's tolerant godotenv.Load usage in dev) and binds
// environment variables via viper, applying defaults for everything the
// spec treats as optional.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envPath, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("token_cache_size", 4096)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	for _, key := range []string{
		"database_url", "substreams_endpoint", "substreams_api_token",
		"rpc_url", "api_addr", "metrics_addr", "log_level",
		"token_cache_size", "shutdown_timeout",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return &cfg, nil
}
