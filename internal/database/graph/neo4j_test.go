package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// unverifiedStore builds a store around a driver that never dialed. Suitable
// for code paths that fail before a session is opened.
func unverifiedStore(t *testing.T) *Neo4jStore {
	t.Helper()
	driver, err := neo4j.NewDriverWithContext("neo4j://127.0.0.1:1", neo4j.NoAuth())
	require.NoError(t, err)
	return newNeo4jStore(driver, "", zaptest.NewLogger(t))
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Person", true},
		{"KNOWS", true},
		{"_private", true},
		{"user1_id", true},
		{"", false},
		{"1abc", false},
		{"Person) DETACH DELETE (n", false},
		{"back`tick", false},
		{"with space", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.name))
		})
	}
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("ingest: %w", NewError(ErrConnection, "upsert node", cause))

	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrQuery)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "upsert node", gerr.Op)
	assert.Equal(t, "graph: connection error: upsert node: socket closed", gerr.Error())
}

func TestClassify(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, classify("op", "q", nil))
	})

	t.Run("database error is a query error", func(t *testing.T) {
		dbErr := &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input"}
		err := classify("execute query", "MATCH (", dbErr)
		assert.ErrorIs(t, err, ErrQuery)

		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "MATCH (", gerr.Query)
	})

	t.Run("context errors pass through", func(t *testing.T) {
		err := classify("find node", "", context.DeadlineExceeded)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrQuery)
	})

	t.Run("already classified errors are kept", func(t *testing.T) {
		orig := NewError(ErrNotFound, "connect nodes", nil)
		assert.Same(t, orig, classify("other", "", orig))
	})
}

func TestConvertNeo4jValue(t *testing.T) {
	alice := neo4j.Node{ElementId: "4:db:1", Labels: []string{"Person"}, Props: map[string]any{"id": "1", "username": "Alice"}}
	bob := neo4j.Node{ElementId: "4:db:2", Labels: []string{"Person"}, Props: map[string]any{"id": "2", "username": "Bob"}}
	knows := neo4j.Relationship{ElementId: "5:db:9", Type: "KNOWS", StartElementId: alice.ElementId, EndElementId: bob.ElementId}

	got := convertNeo4jValue([]any{alice, map[string]any{"rel": knows}, int64(3)})
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 3)

	node, ok := list[0].(Node)
	require.True(t, ok)
	assert.Equal(t, "4:db:1", node.ID)
	username, _ := node.Property("username")
	assert.Equal(t, "Alice", username)

	rel, ok := list[1].(map[string]any)["rel"].(Relationship)
	require.True(t, ok)
	assert.Equal(t, "KNOWS", rel.Type)
	assert.Equal(t, alice.ElementId, rel.StartID)
	assert.Equal(t, bob.ElementId, rel.EndID)

	assert.Equal(t, int64(3), list[2])

	path, ok := convertNeo4jValue(neo4j.Path{Nodes: []neo4j.Node{alice, bob}, Relationships: []neo4j.Relationship{knows}}).(Path)
	require.True(t, ok)
	assert.Len(t, path.Nodes, 2)
	assert.Len(t, path.Relationships, 1)
}

func TestNeo4jStore_RejectsUnsafeIdentifiers(t *testing.T) {
	s := unverifiedStore(t)
	defer s.Close(context.Background())
	ctx := context.Background()

	_, err := s.UpsertNode(ctx, "Person`) DETACH DELETE (x", "id", map[string]any{"id": "1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = s.FindNodeByProperty(ctx, "Person", "id; DROP", "1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.ConnectNodes(ctx, "a", "b", "KNOWS-ALL")
	assert.ErrorIs(t, err, ErrValidation)

	err = s.EnsureUniqueConstraint(ctx, "", "id")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.ExecuteReadQuery(ctx, "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNeo4jStore_UpsertRequiresKeyProperty(t *testing.T) {
	s := unverifiedStore(t)
	defer s.Close(context.Background())

	_, err := s.UpsertNode(context.Background(), "Person", "id", map[string]any{"username": "Alice"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.ExecuteQuery(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNeo4jStore_CloseIsIdempotent(t *testing.T) {
	s := unverifiedStore(t)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
}

func TestNewNeo4jStore_RequiresURI(t *testing.T) {
	_, err := NewNeo4jStore(context.Background(), "", "neo4j", "secret", "")
	assert.ErrorIs(t, err, ErrValidation)
}

// TestNeo4jStore_Integration exercises the store against a live server.
// Set NEO4J_URI, NEO4J_USER and NEO4J_PASSWORD to run it.
func TestNeo4jStore_Integration(t *testing.T) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewNeo4jStore(ctx, uri, os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"), os.Getenv("NEO4J_DATABASE"),
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer s.Close(context.Background())

	label := fmt.Sprintf("ITPerson%d", time.Now().UnixNano())
	defer func() {
		_, _ = s.ExecuteQuery(context.Background(), "MATCH (n:`"+label+"`) DETACH DELETE n", nil)
	}()

	require.NoError(t, s.EnsureUniqueConstraint(ctx, label, "id"))
	defer func() {
		_, _ = s.ExecuteQuery(context.Background(), "DROP CONSTRAINT `"+label+"_id_unique` IF EXISTS", nil)
	}()

	first, err := s.UpsertNode(ctx, label, "id", map[string]any{"id": "1", "username": "Alice"})
	require.NoError(t, err)
	second, err := s.UpsertNode(ctx, label, "id", map[string]any{"id": "1", "username": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, first, second, "upsert must not create a second node")

	bob, err := s.UpsertNode(ctx, label, "id", map[string]any{"id": "2", "username": "Bob"})
	require.NoError(t, err)

	node, found, err := s.FindNodeByProperty(ctx, label, "id", "2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, bob, node.ID)

	_, found, err = s.FindNodeByProperty(ctx, label, "id", "404")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.ConnectNodes(ctx, first, bob, "KNOWS")
	require.NoError(t, err)

	_, err = s.ConnectNodes(ctx, first, "4:missing:0", "KNOWS")
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := s.ExecuteQuery(ctx, "MATCH (n:`"+label+"`) RETURN count(n) AS nodes", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0]["nodes"])

	records, err = s.ExecuteReadQuery(ctx, "MATCH (n:`"+label+"` {id: $id}) RETURN n.username AS username", map[string]any{"id": "2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bob", records[0]["username"])

	_, err = s.ExecuteQuery(ctx, "MATCH (n RETURN n", nil)
	assert.ErrorIs(t, err, ErrQuery)
}
