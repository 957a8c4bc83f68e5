package relational

import (
	"context"
	"database/sql"
	"fmt"

	"socialgraph/internal/database/graph"
	"socialgraph/internal/dataset"
	"socialgraph/internal/social"
)

// Tables names the upstream tables and their columns.
type Tables struct {
	People         string // default "users"
	PeopleID       string // default "id"
	PeopleUsername string // default "username"
	Connections    string // default "connections"
	ConnectionFrom string // default "user1_id"
	ConnectionTo   string // default "user2_id"
}

// DefaultTables matches the upstream export schema.
func DefaultTables() Tables {
	return Tables{
		People:         "users",
		PeopleID:       "id",
		PeopleUsername: "username",
		Connections:    "connections",
		ConnectionFrom: "user1_id",
		ConnectionTo:   "user2_id",
	}
}

func (t Tables) withDefaults() Tables {
	def := DefaultTables()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&t.People, def.People)
	fill(&t.PeopleID, def.PeopleID)
	fill(&t.PeopleUsername, def.PeopleUsername)
	fill(&t.Connections, def.Connections)
	fill(&t.ConnectionFrom, def.ConnectionFrom)
	fill(&t.ConnectionTo, def.ConnectionTo)
	return t
}

func (t Tables) validate() error {
	for _, name := range []string{t.People, t.PeopleID, t.PeopleUsername, t.Connections, t.ConnectionFrom, t.ConnectionTo} {
		if !graph.ValidIdentifier(name) {
			return fmt.Errorf("relational: invalid table or column name %q", name)
		}
	}
	return nil
}

func ident(name string) string {
	return `"` + name + `"`
}

// DuckDBSource loads a dataset.Dataset from the people and connections
// tables of a DuckDB database. Ids of any column type are read as text.
type DuckDBSource struct {
	client *DuckDBClient
	tables Tables
}

var _ dataset.Source = (*DuckDBSource)(nil)

// NewDuckDBSource reads from client using the given table layout; empty
// fields take DefaultTables values.
func NewDuckDBSource(client *DuckDBClient, tables Tables) (*DuckDBSource, error) {
	if client == nil {
		return nil, fmt.Errorf("relational: client is required")
	}
	tables = tables.withDefaults()
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &DuckDBSource{client: client, tables: tables}, nil
}

// Load implements dataset.Source.
func (s *DuckDBSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	t := s.tables
	var ds dataset.Dataset

	peopleQuery := fmt.Sprintf(`SELECT CAST(%s AS VARCHAR), CAST(%s AS VARCHAR) FROM %s`,
		ident(t.PeopleID), ident(t.PeopleUsername), ident(t.People))
	err := s.scanPairs(ctx, peopleQuery, func(id, username string) {
		ds.People = append(ds.People, social.Person{ID: id, Username: username})
	})
	if err != nil {
		return nil, fmt.Errorf("relational: load %s: %w", t.People, err)
	}

	connQuery := fmt.Sprintf(`SELECT CAST(%s AS VARCHAR), CAST(%s AS VARCHAR) FROM %s`,
		ident(t.ConnectionFrom), ident(t.ConnectionTo), ident(t.Connections))
	err = s.scanPairs(ctx, connQuery, func(a, b string) {
		ds.Connections = append(ds.Connections, social.Connection{A: a, B: b})
	})
	if err != nil {
		return nil, fmt.Errorf("relational: load %s: %w", t.Connections, err)
	}
	return &ds, nil
}

// scanPairs runs a two-column query; NULLs become empty strings and are left
// for the ingestion boundary to reject.
func (s *DuckDBSource) scanPairs(ctx context.Context, query string, fn func(a, b string)) error {
	rows, err := s.client.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a, b sql.NullString
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a.String, b.String)
	}
	return rows.Err()
}

// CreateTables creates the upstream tables if they do not exist.
func (s *DuckDBSource) CreateTables(ctx context.Context) error {
	t := s.tables
	schema := []struct{ table, ddl string }{
		{t.People, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s VARCHAR NOT NULL, %s VARCHAR NOT NULL)`,
			ident(t.People), ident(t.PeopleID), ident(t.PeopleUsername))},
		{t.Connections, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s VARCHAR NOT NULL, %s VARCHAR NOT NULL)`,
			ident(t.Connections), ident(t.ConnectionFrom), ident(t.ConnectionTo))},
	}
	for _, stmt := range schema {
		if _, err := s.client.Exec(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("relational: create %s: %w", stmt.table, err)
		}
	}
	return nil
}

// Store replaces the contents of the tables with ds inside one transaction.
// A repeated person id keeps its last username. Records that failed to
// decode are not written.
func (s *DuckDBSource) Store(ctx context.Context, ds *dataset.Dataset) error {
	t := s.tables
	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("relational: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{t.Connections, t.People} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+ident(table)); err != nil {
			return fmt.Errorf("relational: clear %s: %w", table, err)
		}
	}

	insPerson := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (?, ?)`,
		ident(t.People), ident(t.PeopleID), ident(t.PeopleUsername))
	for _, p := range latestPeople(ds.People) {
		if _, err := tx.ExecContext(ctx, insPerson, p.ID, p.Username); err != nil {
			return fmt.Errorf("relational: insert person %q: %w", p.ID, err)
		}
	}
	insConn := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (?, ?)`,
		ident(t.Connections), ident(t.ConnectionFrom), ident(t.ConnectionTo))
	for _, c := range ds.Connections {
		if c.DecodeErr() != nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, insConn, c.A, c.B); err != nil {
			return fmt.Errorf("relational: insert connection %q-%q: %w", c.A, c.B, err)
		}
	}
	return tx.Commit()
}

func latestPeople(people []social.Person) []social.Person {
	at := make(map[string]int, len(people))
	out := make([]social.Person, 0, len(people))
	for _, p := range people {
		if p.DecodeErr() != nil {
			continue
		}
		if i, ok := at[p.ID]; ok {
			out[i] = p
			continue
		}
		at[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
