package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"socialgraph/internal/config"
	"socialgraph/internal/database/graph"
	"socialgraph/internal/database/relational"
	"socialgraph/internal/dataset"
	"socialgraph/internal/social"
)

func openNeo4j(ctx context.Context, cfg *config.Config, log *zap.Logger) (graph.Store, error) {
	return graph.NewNeo4jStore(ctx,
		cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database,
		graph.WithMaxConnectionPoolSize(cfg.Neo4j.MaxConnectionPoolSize),
		graph.WithConnectTimeout(cfg.Neo4j.ConnectTimeout),
		graph.WithLogger(log),
	)
}

// openService connects to the graph store. The caller closes the service.
func (a *app) openService(ctx context.Context) (*social.Service, error) {
	store, err := a.newStore(ctx, a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graph store: %w", err)
	}
	svc, err := social.NewService(store, social.Options{
		PersonLabel:       a.cfg.Graph.PersonLabel,
		RelationshipType:  a.cfg.Graph.RelationshipType,
		Concurrency:       a.cfg.Ingest.Concurrency,
		SkipExistingEdges: a.cfg.Ingest.SkipExistingEdges,
	}, a.log)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return svc, nil
}

// openSource builds the configured dataset source and a function releasing it.
func (a *app) openSource(ctx context.Context) (dataset.Source, func() error, error) {
	d := a.cfg.Dataset
	switch d.Source {
	case "duckdb":
		client, err := relational.NewDuckDBClient(ctx, d.DuckDBPath, relational.WithReadOnly())
		if err != nil {
			return nil, nil, err
		}
		src, err := relational.NewDuckDBSource(client, a.tables())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return src, client.Close, nil
	default:
		return dataset.JSONFiles{PeoplePath: d.PeopleFile, ConnectionsPath: d.ConnectionsFile}, func() error { return nil }, nil
	}
}

func (a *app) tables() relational.Tables {
	d := a.cfg.Dataset
	return relational.Tables{
		People:         d.PeopleTable,
		PeopleID:       d.PeopleIDColumn,
		PeopleUsername: d.UsernameColumn,
		Connections:    d.ConnectionsTable,
		ConnectionFrom: d.FromColumn,
		ConnectionTo:   d.ToColumn,
	}
}
