package relational

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/internal/dataset"
	"socialgraph/internal/social"
)

func newMemoryClient(t *testing.T) *DuckDBClient {
	t.Helper()
	client, err := NewDuckDBClient(context.Background(), "", WithThreads(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDuckDBSource_LoadUpstreamSchema(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)

	// Upstream tables use integer ids.
	_, err := client.Exec(ctx, `CREATE TABLE users (id INTEGER, username VARCHAR)`)
	require.NoError(t, err)
	_, err = client.Exec(ctx, `CREATE TABLE connections (user1_id INTEGER, user2_id INTEGER)`)
	require.NoError(t, err)
	_, err = client.Exec(ctx, `INSERT INTO users VALUES (1, 'Alice'), (2, 'Bob'), (3, NULL)`)
	require.NoError(t, err)
	_, err = client.Exec(ctx, `INSERT INTO connections VALUES (1, 2)`)
	require.NoError(t, err)

	src, err := NewDuckDBSource(client, Tables{})
	require.NoError(t, err)
	ds, err := src.Load(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []social.Person{
		{ID: "1", Username: "Alice"},
		{ID: "2", Username: "Bob"},
		{ID: "3", Username: ""},
	}, ds.People)
	assert.Equal(t, []social.Connection{{A: "1", B: "2"}}, ds.Connections)
}

func TestDuckDBSource_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)

	src, err := NewDuckDBSource(client, Tables{People: "people", ConnectionFrom: "id_a", ConnectionTo: "id_b"})
	require.NoError(t, err)
	require.NoError(t, src.CreateTables(ctx))
	require.NoError(t, src.CreateTables(ctx))

	in := &dataset.Dataset{
		People:      []social.Person{{ID: "u1", Username: "Alice"}, {ID: "u2", Username: "Bob"}, {ID: "u1", Username: "Alicia"}},
		Connections: []social.Connection{{A: "u1", B: "u2"}},
	}
	require.NoError(t, src.Store(ctx, in))

	out, err := src.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []social.Person{{ID: "u1", Username: "Alicia"}, {ID: "u2", Username: "Bob"}}, out.People)
	assert.Equal(t, in.Connections, out.Connections)
}

func TestDuckDBSource_RejectsUnsafeNames(t *testing.T) {
	client := newMemoryClient(t)
	_, err := NewDuckDBSource(client, Tables{People: `users"; DROP TABLE users; --`})
	require.Error(t, err)

	_, err = NewDuckDBSource(nil, Tables{})
	require.Error(t, err)
}

func TestDuckDBSource_MissingTable(t *testing.T) {
	src, err := NewDuckDBSource(newMemoryClient(t), Tables{})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorContains(t, err, "load users")
}

func TestNewDuckDBClient_FileReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "export.db")

	rw, err := NewDuckDBClient(ctx, path)
	require.NoError(t, err)
	src, err := NewDuckDBSource(rw, Tables{})
	require.NoError(t, err)
	require.NoError(t, src.CreateTables(ctx))
	require.NoError(t, src.Store(ctx, &dataset.Dataset{People: []social.Person{{ID: "1", Username: "Alice"}}}))
	require.NoError(t, rw.Close())

	ro, err := NewDuckDBClient(ctx, path, WithReadOnly())
	require.NoError(t, err)
	defer ro.Close()

	roSrc, err := NewDuckDBSource(ro, Tables{})
	require.NoError(t, err)
	ds, err := roSrc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []social.Person{{ID: "1", Username: "Alice"}}, ds.People)

	_, err = ro.Exec(ctx, `INSERT INTO users VALUES ('2', 'Bob')`)
	assert.Error(t, err)
}

func TestDuckDBSource_StoreReplacesContents(t *testing.T) {
	ctx := context.Background()
	src, err := NewDuckDBSource(newMemoryClient(t), Tables{})
	require.NoError(t, err)
	require.NoError(t, src.CreateTables(ctx))

	first := &dataset.Dataset{
		People:      []social.Person{{ID: "1", Username: "Alice"}, {ID: "2", Username: "Bob"}},
		Connections: []social.Connection{{A: "1", B: "2"}},
	}
	require.NoError(t, src.Store(ctx, first))
	require.NoError(t, src.Store(ctx, &dataset.Dataset{People: []social.Person{{ID: "3", Username: "Cara"}}}))

	out, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []social.Person{{ID: "3", Username: "Cara"}}, out.People)
	assert.Empty(t, out.Connections)
}
