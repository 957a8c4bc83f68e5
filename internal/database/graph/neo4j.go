package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"go.uber.org/zap"
)

const defaultConnectTimeout = 5 * time.Second

// Neo4jStore implements Store and ConstraintEnsurer for Neo4j.
//
// The store owns one driver (and therefore one connection pool) for its whole
// lifetime. Sessions are opened per operation because a neo4j session is not
// safe for concurrent use.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	dbName string
	log    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var (
	_ Store             = (*Neo4jStore)(nil)
	_ ConstraintEnsurer = (*Neo4jStore)(nil)
	_ ReadQuerier       = (*Neo4jStore)(nil)
)

type neo4jOptions struct {
	maxPoolSize    int
	connectTimeout time.Duration
	logger         *zap.Logger
}

// Neo4jOption configures NewNeo4jStore.
type Neo4jOption func(*neo4jOptions)

// WithMaxConnectionPoolSize caps the number of pooled bolt connections.
func WithMaxConnectionPoolSize(n int) Neo4jOption {
	return func(o *neo4jOptions) {
		o.maxPoolSize = n
	}
}

// WithConnectTimeout bounds the connectivity check done at construction.
func WithConnectTimeout(d time.Duration) Neo4jOption {
	return func(o *neo4jOptions) {
		o.connectTimeout = d
	}
}

// WithLogger attaches a logger to the store.
func WithLogger(l *zap.Logger) Neo4jOption {
	return func(o *neo4jOptions) {
		o.logger = l
	}
}

// NewNeo4jStore creates the driver and verifies connectivity. The caller owns
// the returned store and must Close it.
func NewNeo4jStore(ctx context.Context, uri, username, password, dbName string, opts ...Neo4jOption) (*Neo4jStore, error) {
	o := neo4jOptions{connectTimeout: defaultConnectTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if uri == "" {
		return nil, Validationf("connect", "neo4j uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""), func(c *config.Config) {
		if o.maxPoolSize > 0 {
			c.MaxConnectionPoolSize = o.maxPoolSize
		}
		c.SocketConnectTimeout = o.connectTimeout
	})
	if err != nil {
		return nil, NewError(ErrConnection, "create driver", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(context.Background())
		return nil, NewError(ErrConnection, "verify connectivity", err)
	}

	return newNeo4jStore(driver, dbName, o.logger), nil
}

func newNeo4jStore(driver neo4j.DriverWithContext, dbName string, logger *zap.Logger) *Neo4jStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Neo4jStore{
		driver: driver,
		dbName: dbName,
		log:    logger.Named("neo4j"),
	}
}

// Close releases the driver. Only the first call has an effect.
func (s *Neo4jStore) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.driver.Close(ctx)
		s.log.Debug("driver closed", zap.Error(s.closeErr))
	})
	return s.closeErr
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName, AccessMode: mode})
}

// UpsertNode merges a node on label + key and sets props on it.
func (s *Neo4jStore) UpsertNode(ctx context.Context, label, key string, props map[string]any) (string, error) {
	const op = "upsert node"
	ql, err := quote("label", label)
	if err != nil {
		return "", err
	}
	qk, err := quote("property", key)
	if err != nil {
		return "", err
	}
	keyValue, ok := props[key]
	if !ok || keyValue == nil {
		return "", Validationf(op, "properties must include key %q", key)
	}

	query := `
		MERGE (n:` + ql + ` {` + qk + `: $key})
		SET n += $props
		RETURN elementId(n) AS id
	`
	id, err := s.writeSingleString(ctx, op, query, map[string]any{"key": keyValue, "props": props})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &Error{Op: op, Kind: ErrQuery, Query: query, Err: fmt.Errorf("merge returned no node")}
	}
	return id, nil
}

// FindNodeByProperty returns the first node with the given label and property value.
func (s *Neo4jStore) FindNodeByProperty(ctx context.Context, label, property string, value any) (Node, bool, error) {
	const op = "find node"
	ql, err := quote("label", label)
	if err != nil {
		return Node{}, false, err
	}
	qp, err := quote("property", property)
	if err != nil {
		return Node{}, false, err
	}

	query := `MATCH (n:` + ql + `) WHERE n.` + qp + ` = $value RETURN n LIMIT 1`

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"value": value})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		raw, _ := records[0].Get("n")
		return raw, nil
	})
	if err != nil {
		return Node{}, false, classify(op, query, err)
	}
	if result == nil {
		return Node{}, false, nil
	}
	n, ok := result.(neo4j.Node)
	if !ok {
		return Node{}, false, &Error{Op: op, Kind: ErrQuery, Query: query, Err: fmt.Errorf("unexpected value %T", result)}
	}
	return toNode(n), true, nil
}

// ConnectNodes creates a relationship from fromID to toID. Identities are
// element ids as returned by UpsertNode / FindNodeByProperty.
func (s *Neo4jStore) ConnectNodes(ctx context.Context, fromID, toID, relType string) (string, error) {
	const op = "connect nodes"
	qr, err := quote("relationship type", relType)
	if err != nil {
		return "", err
	}

	query := `
		MATCH (a) WHERE elementId(a) = $from
		MATCH (b) WHERE elementId(b) = $to
		CREATE (a)-[r:` + qr + `]->(b)
		RETURN elementId(r) AS id
	`
	id, err := s.writeSingleString(ctx, op, query, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &Error{Op: op, Kind: ErrNotFound, Query: query, Err: fmt.Errorf("node %q or %q does not exist", fromID, toID)}
	}
	return id, nil
}

// EnsureUniqueConstraint creates a uniqueness constraint on label.property if
// it does not exist yet.
func (s *Neo4jStore) EnsureUniqueConstraint(ctx context.Context, label, property string) error {
	const op = "ensure constraint"
	ql, err := quote("label", label)
	if err != nil {
		return err
	}
	qp, err := quote("property", property)
	if err != nil {
		return err
	}
	name, err := quote("constraint", label+"_"+property+"_unique")
	if err != nil {
		return err
	}

	query := `CREATE CONSTRAINT ` + name + ` IF NOT EXISTS FOR (n:` + ql + `) REQUIRE n.` + qp + ` IS UNIQUE`

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return classify(op, query, err)
	}
	s.log.Debug("unique constraint ensured", zap.String("label", label), zap.String("property", property))
	return nil
}

// writeSingleString runs query in a write transaction and returns the "id"
// column of the first record, or "" when there is none.
func (s *Neo4jStore) writeSingleString(ctx context.Context, op, query string, params map[string]any) (string, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return "", nil
		}
		id, _ := records[0].Get("id")
		str, _ := id.(string)
		return str, nil
	})
	if err != nil {
		return "", classify(op, query, err)
	}
	return result.(string), nil
}
