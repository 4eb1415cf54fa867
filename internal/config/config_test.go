package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
)

func validConfig() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Password: "secret",
			Database: "neo4j",
		},
		Ingestion: IngestionConfig{Workers: 4, MaxBatchBytes: 4 << 20, StatePath: ".cgraph/state.db"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing uri", func(c *Config) { c.Neo4j.URI = "" }},
		{"missing user", func(c *Config) { c.Neo4j.User = "" }},
		{"negative workers", func(c *Config) { c.Ingestion.Workers = -1 }},
		{"negative batch bytes", func(c *Config) { c.Ingestion.MaxBatchBytes = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, cgerr.IsConfiguration(err))
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "neo4j://db.internal:7687")
	t.Setenv("NEO4J_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "neo4j://db.internal:7687", cfg.Neo4j.URI)
	assert.Equal(t, "hunter2", cfg.Neo4j.Password)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
}
