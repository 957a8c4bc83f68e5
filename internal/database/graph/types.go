package graph

import "context"

// Node is a graph vertex as seen by callers of a Store.
type Node struct {
	ID         string // store-internal identity (Neo4j element id)
	Labels     []string
	Properties map[string]any
}

// Property returns the named property and whether it was set.
func (n Node) Property(name string) (any, bool) {
	v, ok := n.Properties[name]
	return v, ok
}

// Relationship is a typed connection between two nodes.
type Relationship struct {
	ID         string
	Type       string
	StartID    string
	EndID      string
	Properties map[string]any
}

// Path is an alternating sequence of nodes and relationships.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}

// Record is one result row keyed by the query's return column names.
type Record map[string]any

// Store defines the graph database operations the rest of the module relies on.
type Store interface {
	// UpsertNode merges a node by label and the value of its key property,
	// applies props and returns the node's identity.
	UpsertNode(ctx context.Context, label, key string, props map[string]any) (string, error)
	// FindNodeByProperty returns the first node matching label and property.
	// Absence is reported as found == false with a nil error.
	FindNodeByProperty(ctx context.Context, label, property string, value any) (node Node, found bool, err error)
	// ConnectNodes creates a relationship between two node identities. It fails
	// with ErrNotFound when either identity does not resolve.
	ConnectNodes(ctx context.Context, fromID, toID, relType string) (string, error)
	// ExecuteQuery runs a parameterized query and returns every record.
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]Record, error)
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// ReadQuerier is implemented by stores that can run a query in read-only
// mode.
type ReadQuerier interface {
	ExecuteReadQuery(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// ConstraintEnsurer is implemented by stores that can enforce property
// uniqueness natively.
type ConstraintEnsurer interface {
	EnsureUniqueConstraint(ctx context.Context, label, property string) error
}
