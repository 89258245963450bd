package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	envPrefix          = "CAREER_PIPELINE_"
	defaultConfigFile  = "career-pipeline.yaml"
	defaultDataDirName = ".career-pipeline"
)

// Config is the runtime configuration of the server and CLI.
type Config struct {
	DataDir          string        `koanf:"data_dir"`
	Driver           string        `koanf:"driver"`
	Database         string        `koanf:"database"`
	DumpPath         string        `koanf:"dump_path"`
	QueryTimeout     time.Duration `koanf:"query_timeout"`
	MaxRows          int           `koanf:"max_rows"`
	SearchLimit      int           `koanf:"search_limit"`
	StrictStatements bool          `koanf:"strict_statements"`
	LogLevel         string        `koanf:"log_level"`

	Postgres ConnConfig `koanf:"postgres"`
	MySQL    ConnConfig `koanf:"mysql"`
}

// ConnConfig holds network connection settings for server databases.
type ConnConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Name     string `koanf:"name"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, defaultDataDirName)
}

// LoadConfig loads configuration from defaults, a YAML file, environment
// variables and flags. Precedence (highest to lowest): flags > env vars >
// config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"data_dir":          defaultDataDir(),
		"driver":            "sqlite",
		"query_timeout":     "30s",
		"max_rows":          10000,
		"search_limit":      DefaultSearchLimit,
		"strict_statements": false,
		"log_level":         "info",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path, or ./career-pipeline.yaml when present
	if cfgFile == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			cfgFile = defaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment: CAREER_PIPELINE_DATA_DIR -> data_dir,
	// CAREER_PIPELINE_POSTGRES__HOST -> postgres.host
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "strict" {
				key = "strict_statements"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerivedDefaults fills paths that live under the data directory.
func (c *Config) applyDerivedDefaults() {
	if c.Database == "" && isSQLiteDriver(c.Driver) {
		c.Database = filepath.Join(c.DataDir, "career.db")
	}
	if c.DumpPath == "" {
		c.DumpPath = filepath.Join(c.DataDir, "dumps", "career.sql")
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if _, ok := adapterFor(c.Driver); !ok {
		return fmt.Errorf("unsupported driver %q: must be one of sqlite, postgres, mysql", c.Driver)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative")
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search_limit must be positive")
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	return nil
}

func isSQLiteDriver(driver string) bool {
	switch driver {
	case "", "sqlite", "sqlite3":
		return true
	}
	return false
}
