// Package config loads runtime settings from a config file, the
// environment, and .env files, in that order of increasing precedence.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
)

// Config holds all runtime settings.
type Config struct {
	Neo4j     Neo4jConfig     `yaml:"neo4j" mapstructure:"neo4j"`
	Ingestion IngestionConfig `yaml:"ingestion" mapstructure:"ingestion"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

type IngestionConfig struct {
	Workers       int    `yaml:"workers" mapstructure:"workers"`
	MaxBatchBytes int64  `yaml:"max_batch_bytes" mapstructure:"max_batch_bytes"`
	StatePath     string `yaml:"state_path" mapstructure:"state_path"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "text" or "json"
}

// Load reads configuration. Lookup order: built-in defaults, then an
// optional cgraph.yaml (current dir or ~/.config/cgraph/), then CGRAPH_*
// environment variables. A .env file in the working directory is loaded
// into the environment first so NEO4J_* secrets never need exporting.
func Load() (*Config, error) {
	// Silently ignore a missing .env; it is optional.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("cgraph")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "cgraph"))
	}

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("ingestion.workers", runtime.NumCPU())
	v.SetDefault("ingestion.max_batch_bytes", int64(4<<20))
	v.SetDefault("ingestion.state_path", ".cgraph/state.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("CGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, cgerr.NewConfiguration("config_file", "read config: %v", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, cgerr.NewConfiguration("config_file", "decode config: %v", err)
	}

	// Bare NEO4J_* variables override for compatibility with standard
	// Neo4j tooling.
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the run.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return cgerr.NewConfiguration("neo4j.uri", "graph store URI is required")
	}
	if c.Neo4j.User == "" {
		return cgerr.NewConfiguration("neo4j.user", "graph store user is required")
	}
	if c.Ingestion.Workers < 0 {
		return cgerr.NewConfiguration("ingestion.workers", "must be >= 0, got %d", c.Ingestion.Workers)
	}
	if c.Ingestion.MaxBatchBytes < 0 {
		return cgerr.NewConfiguration("ingestion.max_batch_bytes", "must be >= 0, got %d", c.Ingestion.MaxBatchBytes)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return cgerr.NewConfiguration("log.format", "must be text or json, got %q", c.Log.Format)
	}
	return nil
}
