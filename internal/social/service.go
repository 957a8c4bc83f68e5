// Package social loads people and their acquaintances into a graph store and
// answers shortest-path questions over them.
package social

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"socialgraph/internal/database/graph"
)

// Property names on person nodes.
const (
	personKey   = "id"
	usernameKey = "username"
)

// Options tunes a Service.
type Options struct {
	PersonLabel      string // node label for people (default "Person")
	RelationshipType string // acquaintance relationship type (default "KNOWS")
	// Concurrency caps in-flight store calls during ingestion (default 8).
	Concurrency int
	// SkipExistingEdges checks the store for an existing relationship before
	// connecting two people, so re-ingesting a dataset adds no duplicates.
	SkipExistingEdges bool
}

// DefaultOptions returns the recommended options. NewService fills a zero
// PersonLabel, RelationshipType or Concurrency from them.
func DefaultOptions() Options {
	return Options{
		PersonLabel:       "Person",
		RelationshipType:  "KNOWS",
		Concurrency:       8,
		SkipExistingEdges: true,
	}
}

// Service owns a graph store for its whole lifetime.
type Service struct {
	store    graph.Store
	opts     Options
	queries  queries
	validate *validator.Validate
	log      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewService takes ownership of store; Close releases it.
func NewService(store graph.Store, opts Options, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("social: store is required")
	}
	def := DefaultOptions()
	if opts.PersonLabel == "" {
		opts.PersonLabel = def.PersonLabel
	}
	if opts.RelationshipType == "" {
		opts.RelationshipType = def.RelationshipType
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	q, err := buildQueries(opts.PersonLabel, opts.RelationshipType)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		opts:     opts,
		queries:  q,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.Named("social"),
	}, nil
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// ExecuteQuery passes a parameterized query straight to the store.
func (s *Service) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	return s.store.ExecuteQuery(ctx, query, params)
}

// readQuery runs one of the service's own read-only queries, on a read
// session when the store offers one.
func (s *Service) readQuery(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	if rq, ok := s.store.(graph.ReadQuerier); ok {
		return rq.ExecuteReadQuery(ctx, query, params)
	}
	return s.store.ExecuteQuery(ctx, query, params)
}

// Close releases the store exactly once.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close(ctx)
	})
	return s.closeErr
}
