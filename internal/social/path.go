package social

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"socialgraph/internal/database/graph"
)

// PathStatus is the outcome of a shortest path query.
type PathStatus string

const (
	PathFound     PathStatus = "found"
	PathNoPath    PathStatus = "no_path"
	UnknownPerson PathStatus = "unknown_person"
	AmbiguousName PathStatus = "ambiguous_name"
)

// PathResult is the answer to FindShortestPath. Names is the ordered list of
// usernames from Start to End, inclusive, and is empty unless Status is
// PathFound. Unresolved lists the names that matched zero or several people.
type PathResult struct {
	Start      string     `json:"start"`
	End        string     `json:"end"`
	Status     PathStatus `json:"status"`
	Names      []string   `json:"names,omitempty"`
	Unresolved []string   `json:"unresolved,omitempty"`
}

// Found reports whether a path was found.
func (r PathResult) Found() bool { return r.Status == PathFound }

// Hops is the number of relationships on the path, or -1 when there is none.
func (r PathResult) Hops() int {
	if !r.Found() {
		return -1
	}
	return len(r.Names) - 1
}

// Join renders the path with sep between names.
func (r PathResult) Join(sep string) string {
	return strings.Join(r.Names, sep)
}

func (r PathResult) String() string {
	switch r.Status {
	case PathFound:
		return r.Join(", ")
	case UnknownPerson:
		return fmt.Sprintf("Unknown person: %s.", strings.Join(r.Unresolved, ", "))
	case AmbiguousName:
		return fmt.Sprintf("Ambiguous name: %s matches more than one person.", strings.Join(r.Unresolved, ", "))
	default:
		return fmt.Sprintf("No path found between %s and %s.", r.Start, r.End)
	}
}

// FindShortestPath returns the shortest chain of acquaintances between the
// people named start and end, ignoring relationship direction. When several
// shortest paths exist the store decides which one is returned.
func (s *Service) FindShortestPath(ctx context.Context, start, end string) (PathResult, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	res := PathResult{Start: start, End: end}
	if start == "" || end == "" {
		pathQueriesTotal.WithLabelValues("error").Inc()
		return res, graph.Validationf("find shortest path", "start and end names are required")
	}

	names := []string{start}
	if end != start {
		names = append(names, end)
	}
	var unknown, ambiguous []string
	for _, name := range names {
		n, err := s.countByName(ctx, name)
		if err != nil {
			pathQueriesTotal.WithLabelValues("error").Inc()
			return res, err
		}
		switch {
		case n == 0:
			unknown = append(unknown, name)
		case n > 1:
			ambiguous = append(ambiguous, name)
		}
	}
	// Unknown wins over ambiguous.
	if len(unknown) > 0 {
		res.Status = UnknownPerson
		res.Unresolved = unknown
		return s.pathDone(res), nil
	}
	if len(ambiguous) > 0 {
		res.Status = AmbiguousName
		res.Unresolved = ambiguous
		return s.pathDone(res), nil
	}

	if start == end {
		res.Status = PathFound
		res.Names = []string{start}
		return s.pathDone(res), nil
	}

	records, err := s.readQuery(ctx, s.queries.shortestPath, map[string]any{"start": start, "end": end})
	if err != nil {
		pathQueriesTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("shortest path %q-%q: %w", start, end, err)
	}
	if len(records) == 0 {
		res.Status = PathNoPath
		return s.pathDone(res), nil
	}
	path, ok := asStrings(records[0]["names"])
	if !ok || len(path) == 0 {
		pathQueriesTotal.WithLabelValues("error").Inc()
		return res, &graph.Error{Op: "shortest path", Kind: graph.ErrQuery, Query: s.queries.shortestPath,
			Err: fmt.Errorf("unexpected names value %T", records[0]["names"])}
	}
	res.Status = PathFound
	res.Names = path
	return s.pathDone(res), nil
}

func (s *Service) pathDone(res PathResult) PathResult {
	pathQueriesTotal.WithLabelValues(string(res.Status)).Inc()
	s.log.Debug("path query",
		zap.String("start", res.Start),
		zap.String("end", res.End),
		zap.String("status", string(res.Status)),
		zap.Int("hops", res.Hops()))
	return res
}

func (s *Service) countByName(ctx context.Context, name string) (int64, error) {
	records, err := s.readQuery(ctx, s.queries.countByName, map[string]any{"name": name})
	if err != nil {
		return 0, fmt.Errorf("resolve name %q: %w", name, err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	n, ok := asInt64(records[0]["matches"])
	if !ok {
		return 0, &graph.Error{Op: "resolve name", Kind: graph.ErrQuery, Query: s.queries.countByName,
			Err: fmt.Errorf("unexpected matches value %T", records[0]["matches"])}
	}
	return n, nil
}
