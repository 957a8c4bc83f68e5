package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ExecuteQuery runs a parameterized Cypher query in an auto-commit transaction
// on a write session, so it also accepts schema and data changes. Driver types
// in the records are converted to Node, Relationship and Path.
func (s *Neo4jStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	const op = "execute query"
	if query == "" {
		return nil, Validationf(op, "query is empty")
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, classify(op, query, err)
	}

	records := []Record{}
	for result.Next(ctx) {
		records = append(records, toRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, classify(op, query, err)
	}
	return records, nil
}

// ExecuteReadQuery runs a read-only query in a managed read transaction, which
// the driver may route to a follower and retry on transient failures.
func (s *Neo4jStore) ExecuteReadQuery(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	const op = "execute read query"
	if query == "" {
		return nil, Validationf(op, "query is empty")
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, classify(op, query, err)
	}

	raw, _ := result.([]*neo4j.Record)
	records := make([]Record, 0, len(raw))
	for _, rec := range raw {
		records = append(records, toRecord(rec))
	}
	return records, nil
}

func toRecord(rec *neo4j.Record) Record {
	row := make(Record, len(rec.Keys))
	for i, key := range rec.Keys {
		row[key] = convertNeo4jValue(rec.Values[i])
	}
	return row
}

func toNode(n neo4j.Node) Node {
	return Node{
		ID:         n.ElementId,
		Labels:     n.Labels,
		Properties: n.Props,
	}
}

func toRelationship(r neo4j.Relationship) Relationship {
	return Relationship{
		ID:         r.ElementId,
		Type:       r.Type,
		StartID:    r.StartElementId,
		EndID:      r.EndElementId,
		Properties: r.Props,
	}
}

// convertNeo4jValue converts driver graph types to this package's types,
// recursing into lists and maps.
func convertNeo4jValue(val any) any {
	switch v := val.(type) {
	case neo4j.Node:
		return toNode(v)
	case neo4j.Relationship:
		return toRelationship(v)
	case neo4j.Path:
		p := Path{
			Nodes:         make([]Node, len(v.Nodes)),
			Relationships: make([]Relationship, len(v.Relationships)),
		}
		for i, n := range v.Nodes {
			p.Nodes[i] = toNode(n)
		}
		for i, r := range v.Relationships {
			p.Relationships[i] = toRelationship(r)
		}
		return p
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = convertNeo4jValue(item)
		}
		return result
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, item := range v {
			result[k] = convertNeo4jValue(item)
		}
		return result
	default:
		return v
	}
}
