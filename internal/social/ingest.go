package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"socialgraph/internal/database/graph"
)

// SkippedConnection is a connection that was valid but could not be
// materialized because an endpoint does not exist in the store.
type SkippedConnection struct {
	Index      int        `json:"index"`
	Connection Connection `json:"connection"`
	Missing    []string   `json:"missing"`
	Reason     string     `json:"reason"`
}

// IngestReport is the outcome of one ingestion run. Skipped and rejected
// records make the run partial, not failed.
type IngestReport struct {
	RunID string `json:"run_id"`

	PeopleReceived  int `json:"people_received"`
	PeopleUpserted  int `json:"people_upserted"`
	DuplicatePeople int `json:"duplicate_people"`

	ConnectionsReceived  int `json:"connections_received"`
	EdgesCreated         int `json:"edges_created"`
	DuplicateConnections int `json:"duplicate_connections"`
	ExistingEdges        int `json:"existing_edges"`

	Skipped  []SkippedConnection `json:"skipped,omitempty"`
	Rejected []Rejection         `json:"rejected,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Partial reports whether any record was skipped or rejected.
func (r *IngestReport) Partial() bool {
	return len(r.Skipped) > 0 || len(r.Rejected) > 0
}

// Ingest upserts every person, then connects every pair whose endpoints both
// exist. All person upserts finish before the first edge is attempted.
//
// Invalid records and connections with a missing endpoint are reported in
// the returned IngestReport. A store failure aborts the run and is returned
// together with the report of what was done so far.
func (s *Service) Ingest(ctx context.Context, people []Person, connections []Connection) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{
		RunID:               uuid.NewString(),
		PeopleReceived:      len(people),
		ConnectionsReceived: len(connections),
	}
	log := s.log.With(zap.String("run_id", report.RunID))

	if ensurer, ok := s.store.(graph.ConstraintEnsurer); ok {
		if err := ensurer.EnsureUniqueConstraint(ctx, s.opts.PersonLabel, personKey); err != nil {
			return s.finish(log, report, start, fmt.Errorf("ensure %s.%s constraint: %w", s.opts.PersonLabel, personKey, err))
		}
	}

	valid := s.preparePeople(log, people, report)
	if err := s.upsertPeople(ctx, valid, report); err != nil {
		return s.finish(log, report, start, err)
	}

	pairs := s.prepareConnections(log, connections, report)
	if err := s.connectPairs(ctx, log, pairs, report); err != nil {
		return s.finish(log, report, start, err)
	}

	return s.finish(log, report, start, nil)
}

func (s *Service) finish(log *zap.Logger, report *IngestReport, start time.Time, err error) (*IngestReport, error) {
	report.Duration = time.Since(start)
	ingestDuration.Observe(report.Duration.Seconds())

	fields := []zap.Field{
		zap.Int("people_upserted", report.PeopleUpserted),
		zap.Int("edges_created", report.EdgesCreated),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("existing_edges", report.ExistingEdges),
		zap.Duration("duration", report.Duration),
	}
	if err != nil {
		log.Error("ingestion aborted", append(fields, zap.Error(err))...)
		return report, err
	}
	log.Info("ingestion finished", fields...)
	return report, nil
}

// preparePeople validates people and collapses repeated ids, keeping the
// last occurrence.
func (s *Service) preparePeople(log *zap.Logger, people []Person, report *IngestReport) []Person {
	byID := make(map[string]int, len(people))
	out := make([]Person, 0, len(people))
	for i, raw := range people {
		p, err := s.normalizePerson(raw)
		if err != nil {
			report.Rejected = append(report.Rejected, Rejection{Kind: "person", Index: i, Reason: err.Error(), Err: err})
			peopleRejectedTotal.Inc()
			log.Warn("person rejected", zap.Int("index", i), zap.Error(err))
			continue
		}
		if at, dup := byID[p.ID]; dup {
			out[at] = p
			report.DuplicatePeople++
			continue
		}
		byID[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

func (s *Service) upsertPeople(ctx context.Context, people []Person, report *IngestReport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var upserted atomic.Int64
	for _, p := range people {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			props := map[string]any{personKey: p.ID, usernameKey: p.Username}
			if _, err := s.store.UpsertNode(gctx, s.opts.PersonLabel, personKey, props); err != nil {
				return fmt.Errorf("upsert person %q: %w", p.ID, err)
			}
			upserted.Add(1)
			return nil
		})
	}
	err := g.Wait()

	report.PeopleUpserted = int(upserted.Load())
	peopleUpsertedTotal.Add(float64(report.PeopleUpserted))
	return err
}

type indexedConnection struct {
	index int
	conn  Connection
}

// prepareConnections validates connections and drops repeated unordered pairs.
func (s *Service) prepareConnections(log *zap.Logger, connections []Connection, report *IngestReport) []indexedConnection {
	seen := make(map[string]struct{}, len(connections))
	out := make([]indexedConnection, 0, len(connections))
	for i, raw := range connections {
		c, err := s.normalizeConnection(raw)
		if err != nil {
			report.Rejected = append(report.Rejected, Rejection{Kind: "connection", Index: i, Reason: err.Error(), Err: err})
			connectionsTotal.WithLabelValues("rejected").Inc()
			log.Warn("connection rejected", zap.Int("index", i), zap.Error(err))
			continue
		}
		k := c.key()
		if _, dup := seen[k]; dup {
			report.DuplicateConnections++
			connectionsTotal.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[k] = struct{}{}
		out = append(out, indexedConnection{index: i, conn: c})
	}
	return out
}

func (s *Service) connectPairs(ctx context.Context, log *zap.Logger, pairs []indexedConnection, report *IngestReport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var (
		mu       sync.Mutex
		created  int
		existing int
		skipped  []SkippedConnection
	)
	skip := func(ic indexedConnection, missing []string, reason string) {
		mu.Lock()
		skipped = append(skipped, SkippedConnection{Index: ic.index, Connection: ic.conn, Missing: missing, Reason: reason})
		mu.Unlock()
		connectionsTotal.WithLabelValues("missing_endpoint").Inc()
		log.Warn("connection skipped",
			zap.String("id_a", ic.conn.A),
			zap.String("id_b", ic.conn.B),
			zap.Strings("missing", missing),
			zap.String("reason", reason))
	}

	for _, ic := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			from, okA, err := s.store.FindNodeByProperty(gctx, s.opts.PersonLabel, personKey, ic.conn.A)
			if err != nil {
				return fmt.Errorf("resolve person %q: %w", ic.conn.A, err)
			}
			to, okB, err := s.store.FindNodeByProperty(gctx, s.opts.PersonLabel, personKey, ic.conn.B)
			if err != nil {
				return fmt.Errorf("resolve person %q: %w", ic.conn.B, err)
			}
			if !okA || !okB {
				var missing []string
				if !okA {
					missing = append(missing, ic.conn.A)
				}
				if !okB {
					missing = append(missing, ic.conn.B)
				}
				skip(ic, missing, "endpoint not found")
				return nil
			}

			if s.opts.SkipExistingEdges {
				linked, err := s.edgeExists(gctx, ic.conn)
				if err != nil {
					return err
				}
				if linked {
					mu.Lock()
					existing++
					mu.Unlock()
					connectionsTotal.WithLabelValues("existing").Inc()
					return nil
				}
			}

			if _, err := s.store.ConnectNodes(gctx, from.ID, to.ID, s.opts.RelationshipType); err != nil {
				if errors.Is(err, graph.ErrNotFound) {
					skip(ic, nil, "endpoint vanished before connect")
					return nil
				}
				return fmt.Errorf("connect %q-%q: %w", ic.conn.A, ic.conn.B, err)
			}
			mu.Lock()
			created++
			mu.Unlock()
			connectionsTotal.WithLabelValues("created").Inc()
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Index < skipped[j].Index })
	report.EdgesCreated = created
	report.ExistingEdges = existing
	report.Skipped = skipped
	return err
}

func (s *Service) edgeExists(ctx context.Context, c Connection) (bool, error) {
	records, err := s.readQuery(ctx, s.queries.edgeCount, map[string]any{"a": c.A, "b": c.B})
	if err != nil {
		return false, fmt.Errorf("check edge %q-%q: %w", c.A, c.B, err)
	}
	if len(records) == 0 {
		return false, nil
	}
	n, ok := asInt64(records[0]["edges"])
	if !ok {
		return false, &graph.Error{Op: "check edge", Kind: graph.ErrQuery, Query: s.queries.edgeCount,
			Err: fmt.Errorf("unexpected edges value %T", records[0]["edges"])}
	}
	return n > 0, nil
}
