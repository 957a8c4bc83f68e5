// Package graphtest provides an in-memory graph.Store for tests.
package graphtest

import (
	"context"
	"fmt"
	"sync"

	"socialgraph/internal/database/graph"
)

// QueryHandler answers one registered query text.
type QueryHandler func(s *MemoryStore, params map[string]any) ([]graph.Record, error)

// MemoryStore keeps nodes and relationships in maps. Queries are not parsed:
// ExecuteQuery dispatches on the exact query text to handlers registered
// with Handle, and fails with graph.ErrQuery for anything else.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]graph.Node
	order    []string
	rels     map[string]graph.Relationship
	adj      map[string][]string // node id -> relationship ids touching it
	handlers map[string]QueryHandler
	nextID   int

	// Fail, when set, is consulted before every operation; a non-nil result
	// is returned as the operation's error.
	Fail func(op string) error

	Closed      int
	Constraints []string
	Queries     []string
	ReadQueries []string
}

var (
	_ graph.Store             = (*MemoryStore)(nil)
	_ graph.ConstraintEnsurer = (*MemoryStore)(nil)
	_ graph.ReadQuerier       = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]graph.Node),
		rels:     make(map[string]graph.Relationship),
		adj:      make(map[string][]string),
		handlers: make(map[string]QueryHandler),
	}
}

// Handle registers fn for the exact query text.
func (s *MemoryStore) Handle(query string, fn QueryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[query] = fn
}

func (s *MemoryStore) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func hasLabel(n graph.Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// UpsertNode merges on label + key value.
func (s *MemoryStore) UpsertNode(ctx context.Context, label, key string, props map[string]any) (string, error) {
	if err := s.fail("upsert"); err != nil {
		return "", err
	}
	keyValue, ok := props[key]
	if !ok || keyValue == nil {
		return "", graph.Validationf("upsert node", "properties must include key %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		n := s.nodes[id]
		if hasLabel(n, label) && n.Properties[key] == keyValue {
			for k, v := range props {
				n.Properties[k] = v
			}
			return id, nil
		}
	}

	s.nextID++
	id := fmt.Sprintf("mem:node:%d", s.nextID)
	merged := make(map[string]any, len(props))
	for k, v := range props {
		merged[k] = v
	}
	s.nodes[id] = graph.Node{ID: id, Labels: []string{label}, Properties: merged}
	s.order = append(s.order, id)
	return id, nil
}

// FindNodeByProperty returns the earliest created match.
func (s *MemoryStore) FindNodeByProperty(ctx context.Context, label, property string, value any) (graph.Node, bool, error) {
	if err := s.fail("find"); err != nil {
		return graph.Node{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		n := s.nodes[id]
		if hasLabel(n, label) && n.Properties[property] == value {
			return n, true, nil
		}
	}
	return graph.Node{}, false, nil
}

// ConnectNodes adds a directed relationship.
func (s *MemoryStore) ConnectNodes(ctx context.Context, fromID, toID, relType string) (string, error) {
	if err := s.fail("connect"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[fromID]; !ok {
		return "", graph.NewError(graph.ErrNotFound, "connect nodes", fmt.Errorf("node %q", fromID))
	}
	if _, ok := s.nodes[toID]; !ok {
		return "", graph.NewError(graph.ErrNotFound, "connect nodes", fmt.Errorf("node %q", toID))
	}
	s.nextID++
	id := fmt.Sprintf("mem:rel:%d", s.nextID)
	s.rels[id] = graph.Relationship{ID: id, Type: relType, StartID: fromID, EndID: toID}
	s.adj[fromID] = append(s.adj[fromID], id)
	if toID != fromID {
		s.adj[toID] = append(s.adj[toID], id)
	}
	return id, nil
}

// ExecuteQuery dispatches to the registered handler.
func (s *MemoryStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	if err := s.fail("query"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.Queries = append(s.Queries, query)
	fn, ok := s.handlers[query]
	s.mu.Unlock()
	if !ok {
		return nil, &graph.Error{Op: "execute query", Kind: graph.ErrQuery, Query: query, Err: fmt.Errorf("no handler registered")}
	}
	return fn(s, params)
}

// ExecuteReadQuery dispatches like ExecuteQuery and also records the query
// in ReadQueries.
func (s *MemoryStore) ExecuteReadQuery(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	s.mu.Lock()
	s.ReadQueries = append(s.ReadQueries, query)
	s.mu.Unlock()
	return s.ExecuteQuery(ctx, query, params)
}

// EnsureUniqueConstraint records the request.
func (s *MemoryStore) EnsureUniqueConstraint(ctx context.Context, label, property string) error {
	if err := s.fail("constraint"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Constraints = append(s.Constraints, label+"."+property)
	return nil
}

// Close counts calls.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed++
	return nil
}

// Nodes returns the nodes carrying label in creation order.
func (s *MemoryStore) Nodes(label string) []graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Node
	for _, id := range s.order {
		if n := s.nodes[id]; hasLabel(n, label) {
			out = append(out, n)
		}
	}
	return out
}

// Relationships returns all relationships of the given type.
func (s *MemoryStore) Relationships(relType string) []graph.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Relationship
	for _, r := range s.rels {
		if r.Type == relType {
			out = append(out, r)
		}
	}
	return out
}

// ShortestPath runs an undirected breadth-first search over relationships of
// relType between two node ids. It returns nil when the nodes are not
// connected.
func (s *MemoryStore) ShortestPath(fromID, toID, relType string) []graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[fromID]; !ok {
		return nil
	}
	prev := map[string]string{fromID: ""}
	queue := []string{fromID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == toID {
			break
		}
		for _, rid := range s.adj[cur] {
			r := s.rels[rid]
			if r.Type != relType {
				continue
			}
			next := r.EndID
			if next == cur {
				next = r.StartID
			}
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	if _, ok := prev[toID]; !ok {
		return nil
	}
	var path []graph.Node
	for cur := toID; cur != ""; cur = prev[cur] {
		path = append([]graph.Node{s.nodes[cur]}, path...)
	}
	return path
}
