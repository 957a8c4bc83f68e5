package social

import (
	"fmt"

	"socialgraph/internal/database/graph"
)

// queries holds the Cypher used by the service. Labels and relationship types
// cannot be query parameters, so they are validated and spliced in once.
type queries struct {
	countByName  string
	shortestPath string
	edgeCount    string
}

func buildQueries(label, relType string) (queries, error) {
	if !graph.ValidIdentifier(label) {
		return queries{}, graph.Validationf("build queries", "invalid person label %q", label)
	}
	if !graph.ValidIdentifier(relType) {
		return queries{}, graph.Validationf("build queries", "invalid relationship type %q", relType)
	}
	l := "`" + label + "`"
	r := "`" + relType + "`"

	return queries{
		countByName: fmt.Sprintf("MATCH (p:%s {%s: $name}) RETURN count(p) AS matches", l, usernameKey),
		shortestPath: fmt.Sprintf(`MATCH (a:%[1]s {%[3]s: $start}), (b:%[1]s {%[3]s: $end})
MATCH path = shortestPath((a)-[:%[2]s*]-(b))
RETURN [n IN nodes(path) | n.%[3]s] AS names`, l, r, usernameKey),
		edgeCount: fmt.Sprintf("MATCH (a:%[1]s {%[3]s: $a})-[r:%[2]s]-(b:%[1]s {%[3]s: $b}) RETURN count(r) AS edges", l, r, personKey),
	}, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
