// Package cli implements the socialgraph command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"socialgraph/internal/config"
	"socialgraph/internal/database/graph"
	"socialgraph/internal/observability"
)

// Version is set at build time.
var Version = "dev"

// app carries state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger

	// newStore opens the graph store; replaced in tests.
	newStore func(ctx context.Context, cfg *config.Config, log *zap.Logger) (graph.Store, error)
	// logOutput overrides stderr for the logger; used by tests.
	logOutput io.Writer
}

// Execute runs the root command with ctx, which the caller cancels on
// interrupt.
func Execute(ctx context.Context) error {
	root := newRootCmd(newApp())
	if err := root.ExecuteContext(ctx); err != nil {
		if ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func newApp() *app {
	return &app{
		v:        viper.New(),
		newStore: openNeo4j,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "socialgraph",
		Short:         "Load a social network into Neo4j and find chains of acquaintances.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				observability.Sync(a.log)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./socialgraph.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("neo4j-uri", "", "Neo4j connection URI")
	flags.String("source", "", "dataset source: json or duckdb")
	flags.String("people", "", "people JSON file")
	flags.String("connections", "", "connections JSON file")
	flags.String("duckdb", "", "DuckDB database holding the users and connections tables")

	bind := map[string]string{
		"logger.level":             "log-level",
		"neo4j.uri":                "neo4j-uri",
		"dataset.source":           "source",
		"dataset.people_file":      "people",
		"dataset.connections_file": "connections",
		"dataset.duckdb_path":      "duckdb",
	}
	for key, name := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newIngestCmd(a),
		newPathCmd(a),
		newQueryCmd(a),
		newServeCmd(a),
		newDatasetCmd(a),
	)
	return root
}

// initialize reads the config file and environment, then builds the logger.
func (a *app) initialize() error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("socialgraph")
		a.v.SetConfigType("yaml")
	}
	config.BindEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		// A missing default config file is fine; a named one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || a.cfgFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	if a.logOutput != nil {
		a.log = observability.NewLoggerTo(cfg.Logger, a.logOutput)
	} else {
		a.log = observability.NewLogger(cfg.Logger)
	}
	a.log.Debug("configuration loaded", zap.String("config_file", a.v.ConfigFileUsed()))
	return nil
}
