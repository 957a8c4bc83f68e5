// Package mcpserver exposes the social graph over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"socialgraph/internal/database/graph"
	"socialgraph/internal/dataset"
	"socialgraph/internal/social"
)

// PathFinder answers shortest path questions.
type PathFinder interface {
	FindShortestPath(ctx context.Context, start, end string) (social.PathResult, error)
}

// Ingester loads people and connections into the graph.
type Ingester interface {
	Ingest(ctx context.Context, people []social.Person, connections []social.Connection) (*social.IngestReport, error)
}

// QueryRunner executes raw parameterized queries.
type QueryRunner interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]graph.Record, error)
}

// Backend is everything the tools need; *social.Service implements it.
type Backend interface {
	PathFinder
	Ingester
	QueryRunner
}

// Server wraps the MCP server with social graph tools.
type Server struct {
	mcpServer *mcp.Server
	backend   Backend
	source    dataset.Source
	log       *zap.Logger

	// Background dataset refresh
	refreshMu     sync.Mutex
	refreshCancel context.CancelFunc
	refreshWg     sync.WaitGroup
}

// Config holds configuration for the MCP server.
type Config struct {
	ServerName      string
	ServerVersion   string
	RefreshInterval time.Duration // 0 disables the background refresh
}

// NewServer creates a new MCP server instance. source may be nil, in which
// case the ingest_dataset tool reports an error and no refresh runs.
func NewServer(cfg Config, backend Backend, source dataset.Source, logger *zap.Logger) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("mcpserver: backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	impl := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	s := &Server{
		mcpServer: mcp.NewServer(impl, nil),
		backend:   backend,
		source:    source,
		log:       logger.Named("mcp"),
	}
	s.registerTools()

	if cfg.RefreshInterval > 0 && source != nil {
		s.startBackgroundRefresh(cfg.RefreshInterval)
	}
	return s, nil
}

// FindPathArgs defines the input for find_shortest_path tool.
type FindPathArgs struct {
	Start string `json:"start" jsonschema:"username of the first person"`
	End   string `json:"end" jsonschema:"username of the second person"`
}

// FindPathResult defines the output for find_shortest_path tool.
type FindPathResult struct {
	Status     string   `json:"status" jsonschema:"found, no_path, unknown_person or ambiguous_name"`
	Names      []string `json:"names,omitempty" jsonschema:"usernames along the path, start and end included"`
	Hops       int      `json:"hops" jsonschema:"number of relationships on the path, -1 when there is none"`
	Unresolved []string `json:"unresolved,omitempty" jsonschema:"names that matched zero or several people"`
	Answer     string   `json:"answer" jsonschema:"human readable answer"`
}

// IngestDatasetArgs defines the input for ingest_dataset tool.
type IngestDatasetArgs struct{}

// IngestDatasetResult wraps the ingestion report.
type IngestDatasetResult struct {
	RunID                string `json:"run_id"`
	PeopleUpserted       int    `json:"people_upserted"`
	EdgesCreated         int    `json:"edges_created"`
	ExistingEdges        int    `json:"existing_edges"`
	DuplicateConnections int    `json:"duplicate_connections"`
	Skipped              int    `json:"skipped" jsonschema:"connections skipped for a missing endpoint"`
	Rejected             int    `json:"rejected" jsonschema:"records refused by validation"`
	Partial              bool   `json:"partial"`
	DurationMS           int64  `json:"duration_ms"`
}

// QueryGraphArgs defines the input for query_graph tool.
type QueryGraphArgs struct {
	Cypher string         `json:"cypher" jsonschema:"Cypher query to execute"`
	Params map[string]any `json:"params,omitempty" jsonschema:"query parameters"`
}

// QueryGraphResult wraps graph query results.
type QueryGraphResult struct {
	Data []graph.Record `json:"data" jsonschema:"query results, one object per row"`
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_shortest_path",
		Description: "Find the shortest chain of acquaintances between two people, identified by username. Relationship direction is ignored.",
	}, s.handleFindShortestPath)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest_dataset",
		Description: "Reload the configured people and connections dataset into the graph. Existing people are updated, existing acquaintances are kept.",
	}, s.handleIngestDataset)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "query_graph",
		Description: "Execute a parameterized Cypher query directly on the graph database. People are (:Person {id, username}) nodes joined by :KNOWS relationships.",
	}, s.handleQueryGraph)
}

func (s *Server) handleFindShortestPath(ctx context.Context, _ *mcp.CallToolRequest, args FindPathArgs) (*mcp.CallToolResult, FindPathResult, error) {
	res, err := s.backend.FindShortestPath(ctx, args.Start, args.End)
	if err != nil {
		return nil, FindPathResult{}, fmt.Errorf("shortest path failed: %w", err)
	}
	return nil, FindPathResult{
		Status:     string(res.Status),
		Names:      res.Names,
		Hops:       res.Hops(),
		Unresolved: res.Unresolved,
		Answer:     res.String(),
	}, nil
}

func (s *Server) handleIngestDataset(ctx context.Context, _ *mcp.CallToolRequest, _ IngestDatasetArgs) (*mcp.CallToolResult, IngestDatasetResult, error) {
	if s.source == nil {
		return nil, IngestDatasetResult{}, fmt.Errorf("no dataset source configured")
	}
	report, err := s.ingest(ctx)
	if err != nil {
		return nil, IngestDatasetResult{}, err
	}
	return nil, IngestDatasetResult{
		RunID:                report.RunID,
		PeopleUpserted:       report.PeopleUpserted,
		EdgesCreated:         report.EdgesCreated,
		ExistingEdges:        report.ExistingEdges,
		DuplicateConnections: report.DuplicateConnections,
		Skipped:              len(report.Skipped),
		Rejected:             len(report.Rejected),
		Partial:              report.Partial(),
		DurationMS:           report.Duration.Milliseconds(),
	}, nil
}

func (s *Server) handleQueryGraph(ctx context.Context, _ *mcp.CallToolRequest, args QueryGraphArgs) (*mcp.CallToolResult, QueryGraphResult, error) {
	records, err := s.backend.ExecuteQuery(ctx, args.Cypher, args.Params)
	if err != nil {
		return nil, QueryGraphResult{}, fmt.Errorf("cypher query failed: %w", err)
	}
	if records == nil {
		records = []graph.Record{}
	}
	return nil, QueryGraphResult{Data: records}, nil
}

// Start starts the MCP server using stdio transport.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting MCP server on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Close stops the background refresh. The backend is owned by the caller.
func (s *Server) Close() {
	s.stopBackgroundRefresh()
}

func (s *Server) ingest(ctx context.Context) (*social.IngestReport, error) {
	ds, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	report, err := s.backend.Ingest(ctx, ds.People, ds.Connections)
	if err != nil {
		return nil, fmt.Errorf("ingest failed: %w", err)
	}
	return report, nil
}

// startBackgroundRefresh re-ingests the dataset every interval.
func (s *Server) startBackgroundRefresh(interval time.Duration) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.refreshCancel != nil {
		return // Already running
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.refreshCancel = cancel
	s.refreshWg.Add(1)

	go func() {
		defer s.refreshWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ingest(ctx); err != nil && ctx.Err() == nil {
					s.log.Warn("background refresh failed", zap.Error(err))
				}
			}
		}
	}()

	s.log.Info("background dataset refresh started", zap.Duration("interval", interval))
}

// stopBackgroundRefresh stops the periodic refresh worker.
func (s *Server) stopBackgroundRefresh() {
	s.refreshMu.Lock()
	cancel := s.refreshCancel
	s.refreshCancel = nil
	s.refreshMu.Unlock()

	if cancel != nil {
		cancel()
		s.refreshWg.Wait()
	}
}
