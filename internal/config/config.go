// Package config loads socialgraph settings from a YAML file and the
// environment through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SOCIALGRAPH_INGEST_CONCURRENCY.
const EnvPrefix = "SOCIALGRAPH"

// Config is the full application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	Graph   GraphConfig   `mapstructure:"graph"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LoggerConfig controls the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"` // days
	Compress    bool   `mapstructure:"compress"`
}

// Neo4jConfig points at the graph database.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	Username              string        `mapstructure:"username"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
}

// GraphConfig names the node label and relationship type.
type GraphConfig struct {
	PersonLabel      string `mapstructure:"person_label"`
	RelationshipType string `mapstructure:"relationship_type"`
}

// IngestConfig tunes ingestion.
type IngestConfig struct {
	Concurrency       int  `mapstructure:"concurrency"`
	SkipExistingEdges bool `mapstructure:"skip_existing_edges"`
}

// DatasetConfig selects where people and connections come from.
type DatasetConfig struct {
	Source           string `mapstructure:"source"` // "json" or "duckdb"
	PeopleFile       string `mapstructure:"people_file"`
	ConnectionsFile  string `mapstructure:"connections_file"`
	DuckDBPath       string `mapstructure:"duckdb_path"`
	PeopleTable      string `mapstructure:"people_table"`
	ConnectionsTable string `mapstructure:"connections_table"`
	PeopleIDColumn   string `mapstructure:"people_id_column"`
	UsernameColumn   string `mapstructure:"username_column"`
	FromColumn       string `mapstructure:"from_column"`
	ToColumn         string `mapstructure:"to_column"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name            string        `mapstructure:"name"`
	Version         string        `mapstructure:"version"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 disables
	MetricsAddr     string        `mapstructure:"metrics_addr"`     // empty disables
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "socialgraph")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)

	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.max_connection_pool_size", 50)
	v.SetDefault("neo4j.connect_timeout", 5*time.Second)

	v.SetDefault("graph.person_label", "Person")
	v.SetDefault("graph.relationship_type", "KNOWS")

	v.SetDefault("ingest.concurrency", 8)
	v.SetDefault("ingest.skip_existing_edges", true)

	v.SetDefault("dataset.source", "json")
	v.SetDefault("dataset.people_file", "users.json")
	v.SetDefault("dataset.connections_file", "connections.json")
	v.SetDefault("dataset.people_table", "users")
	v.SetDefault("dataset.connections_table", "connections")
	v.SetDefault("dataset.people_id_column", "id")
	v.SetDefault("dataset.username_column", "username")
	v.SetDefault("dataset.from_column", "user1_id")
	v.SetDefault("dataset.to_column", "user2_id")

	v.SetDefault("server.name", "socialgraph")
	v.SetDefault("server.version", "1.0.0")
}

// BindEnv enables SOCIALGRAPH_* overrides and the conventional unprefixed
// Neo4j variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("neo4j.uri", EnvPrefix+"_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("neo4j.username", EnvPrefix+"_NEO4J_USERNAME", "NEO4J_USER", "NEO4J_USERNAME")
	_ = v.BindEnv("neo4j.password", EnvPrefix+"_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("neo4j.database", EnvPrefix+"_NEO4J_DATABASE", "NEO4J_DATABASE")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return &ConfigError{Field: "logger.format", Message: "must be console or json"}
	}
	if c.Neo4j.URI == "" {
		return &ConfigError{Field: "neo4j.uri", Message: "must not be empty"}
	}
	if c.Neo4j.ConnectTimeout <= 0 {
		return &ConfigError{Field: "neo4j.connect_timeout", Message: "must be positive"}
	}
	if c.Neo4j.MaxConnectionPoolSize < 0 {
		return &ConfigError{Field: "neo4j.max_connection_pool_size", Message: "must not be negative"}
	}
	if c.Graph.PersonLabel == "" {
		return &ConfigError{Field: "graph.person_label", Message: "must not be empty"}
	}
	if c.Graph.RelationshipType == "" {
		return &ConfigError{Field: "graph.relationship_type", Message: "must not be empty"}
	}
	if c.Ingest.Concurrency <= 0 {
		return &ConfigError{Field: "ingest.concurrency", Message: "must be positive"}
	}
	switch c.Dataset.Source {
	case "json":
		if c.Dataset.PeopleFile == "" || c.Dataset.ConnectionsFile == "" {
			return &ConfigError{Field: "dataset.people_file", Message: "people and connections files are required for the json source"}
		}
	case "duckdb":
		if c.Dataset.DuckDBPath == "" {
			return &ConfigError{Field: "dataset.duckdb_path", Message: "must not be empty for the duckdb source"}
		}
	default:
		return &ConfigError{Field: "dataset.source", Message: "must be json or duckdb"}
	}
	if c.Server.RefreshInterval < 0 {
		return &ConfigError{Field: "server.refresh_interval", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
