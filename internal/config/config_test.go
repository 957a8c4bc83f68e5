package config

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if yaml != "" {
		if err := v.ReadConfig(bytes.NewBufferString(yaml)); err != nil {
			t.Fatalf("ReadConfig: %v", err)
		}
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("defaults should be valid, got %v", err)
	}
	if cfg.Neo4j.URI != "neo4j://localhost:7687" {
		t.Errorf("Neo4j.URI = %q", cfg.Neo4j.URI)
	}
	if cfg.Neo4j.ConnectTimeout != 5*time.Second {
		t.Errorf("Neo4j.ConnectTimeout = %v", cfg.Neo4j.ConnectTimeout)
	}
	if cfg.Graph.PersonLabel != "Person" || cfg.Graph.RelationshipType != "KNOWS" {
		t.Errorf("Graph = %+v", cfg.Graph)
	}
	if cfg.Ingest.Concurrency != 8 || !cfg.Ingest.SkipExistingEdges {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.Dataset.Source != "json" || cfg.Dataset.FromColumn != "user1_id" {
		t.Errorf("Dataset = %+v", cfg.Dataset)
	}
	if cfg.Server.RefreshInterval != 0 {
		t.Errorf("refresh should be disabled by default, got %v", cfg.Server.RefreshInterval)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	v := newViper(t, `
neo4j:
  uri: "neo4j+s://graph.example.com"
  connect_timeout: 2s
ingest:
  concurrency: 3
dataset:
  source: duckdb
  duckdb_path: /data/export.db
server:
  refresh_interval: 1m
`)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Neo4j.URI != "neo4j+s://graph.example.com" {
		t.Errorf("Neo4j.URI = %q", cfg.Neo4j.URI)
	}
	if cfg.Neo4j.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.Neo4j.ConnectTimeout)
	}
	if cfg.Ingest.Concurrency != 3 {
		t.Errorf("Concurrency = %d", cfg.Ingest.Concurrency)
	}
	if cfg.Dataset.DuckDBPath != "/data/export.db" {
		t.Errorf("DuckDBPath = %q", cfg.Dataset.DuckDBPath)
	}
	if cfg.Server.RefreshInterval != time.Minute {
		t.Errorf("RefreshInterval = %v", cfg.Server.RefreshInterval)
	}
}

func TestBindEnv(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://env-host:7687")
	t.Setenv("NEO4J_USER", "reader")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("SOCIALGRAPH_INGEST_CONCURRENCY", "16")

	v := newViper(t, "")
	BindEnv(v)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Neo4j.URI != "bolt://env-host:7687" {
		t.Errorf("Neo4j.URI = %q", cfg.Neo4j.URI)
	}
	if cfg.Neo4j.Username != "reader" || cfg.Neo4j.Password != "secret" {
		t.Errorf("credentials not bound: %+v", cfg.Neo4j)
	}
	if cfg.Ingest.Concurrency != 16 {
		t.Errorf("Concurrency = %d", cfg.Ingest.Concurrency)
	}
}

func TestConfig_Validate(t *testing.T) {
	base, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"empty uri", func(c *Config) { c.Neo4j.URI = "" }, "neo4j.uri"},
		{"zero timeout", func(c *Config) { c.Neo4j.ConnectTimeout = 0 }, "neo4j.connect_timeout"},
		{"negative pool", func(c *Config) { c.Neo4j.MaxConnectionPoolSize = -1 }, "neo4j.max_connection_pool_size"},
		{"empty label", func(c *Config) { c.Graph.PersonLabel = "" }, "graph.person_label"},
		{"empty rel type", func(c *Config) { c.Graph.RelationshipType = "" }, "graph.relationship_type"},
		{"zero concurrency", func(c *Config) { c.Ingest.Concurrency = 0 }, "ingest.concurrency"},
		{"unknown source", func(c *Config) { c.Dataset.Source = "csv" }, "dataset.source"},
		{"json without files", func(c *Config) { c.Dataset.PeopleFile = "" }, "dataset.people_file"},
		{"duckdb without path", func(c *Config) { c.Dataset.Source = "duckdb" }, "dataset.duckdb_path"},
		{"negative refresh", func(c *Config) { c.Server.RefreshInterval = -time.Second }, "server.refresh_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "TestField",
		Message: "test message",
	}

	expected := "config error: TestField test message"
	if err.Error() != expected {
		t.Errorf("Expected error '%s', got '%s'", expected, err.Error())
	}
}
