package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialgraph/internal/config"
	"socialgraph/internal/database/graph"
	"socialgraph/internal/database/graph/graphtest"
	"socialgraph/internal/social"
)

type harness struct {
	app   *app
	store *graphtest.MemoryStore
	out   bytes.Buffer
	logs  bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: graphtest.NewMemoryStore()}
	h.app = newApp()
	h.app.logOutput = &h.logs
	h.app.newStore = func(ctx context.Context, cfg *config.Config, log *zap.Logger) (graph.Store, error) {
		return h.store, nil
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd(h.app)
	root.SetOut(&h.out)
	root.SetErr(&h.out)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func writeDataset(t *testing.T) (dir, people, connections, cfgFile string) {
	t.Helper()
	dir = t.TempDir()
	people = filepath.Join(dir, "users.json")
	connections = filepath.Join(dir, "connections.json")
	cfgFile = filepath.Join(dir, "socialgraph.yaml")
	require.NoError(t, os.WriteFile(people, []byte(`[{"id":1,"username":"Alice"},{"id":2,"username":"Bob"},{"id":3,"username":"Cara"}]`), 0o600))
	require.NoError(t, os.WriteFile(connections, []byte(`[{"user1_id":1,"user2_id":2},{"user1_id":2,"user2_id":3},{"user1_id":3,"user2_id":9}]`), 0o600))
	require.NoError(t, os.WriteFile(cfgFile, []byte("ingest:\n  skip_existing_edges: false\n  concurrency: 2\n"), 0o600))
	return dir, people, connections, cfgFile
}

func TestIngestCommand_JSONFiles(t *testing.T) {
	_, people, connections, cfgFile := writeDataset(t)
	h := newHarness(t)

	err := h.run(t, "ingest", "--config", cfgFile, "--people", people, "--connections", connections)
	require.NoError(t, err)

	assert.Len(t, h.store.Nodes("Person"), 3)
	assert.Len(t, h.store.Relationships("KNOWS"), 2)
	assert.Contains(t, h.out.String(), "3 people upserted, 2 connections created")
	assert.Contains(t, h.out.String(), "skipped connection #2 (3, 9)")
	assert.Equal(t, 1, h.store.Closed)
	assert.Contains(t, h.logs.String(), "ingestion finished")
}

func TestIngestCommand_AbortedRunPrintsPartialReport(t *testing.T) {
	_, people, connections, cfgFile := writeDataset(t)
	h := newHarness(t)
	h.store.Fail = func(op string) error {
		if op == "connect" {
			return graph.NewError(graph.ErrConnection, "connect nodes", errors.New("connection reset"))
		}
		return nil
	}

	err := h.run(t, "ingest", "--config", cfgFile, "--people", people, "--connections", connections, "--json")
	require.ErrorIs(t, err, graph.ErrConnection)
	assert.ErrorContains(t, err, "aborted")

	var report social.IngestReport
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.PeopleUpserted)
	assert.Equal(t, 0, report.EdgesCreated)
	assert.Contains(t, err.Error(), report.RunID)
}

func TestIngestCommand_MalformedRecordIsRejected(t *testing.T) {
	dir, _, connections, cfgFile := writeDataset(t)
	people := filepath.Join(dir, "mixed.json")
	require.NoError(t, os.WriteFile(people, []byte(`[{"id":1,"username":"Alice"},{"id":2,"username":7},{"id":3,"username":"Cara"}]`), 0o600))
	h := newHarness(t)

	require.NoError(t, h.run(t, "ingest", "--config", cfgFile, "--people", people, "--connections", connections))
	assert.Len(t, h.store.Nodes("Person"), 2)
	assert.Contains(t, h.out.String(), "rejected person #1")
}

func TestDatasetSnapshotThenIngestFromDuckDB(t *testing.T) {
	dir, people, connections, cfgFile := writeDataset(t)
	db := filepath.Join(dir, "export.db")

	h := newHarness(t)
	require.NoError(t, h.run(t, "dataset", "snapshot", "--config", cfgFile, "--people", people, "--connections", connections, "--out", db))
	assert.Contains(t, h.out.String(), "Wrote 3 people and 3 connections")

	h2 := newHarness(t)
	require.NoError(t, h2.run(t, "ingest", "--config", cfgFile, "--source", "duckdb", "--duckdb", db))
	assert.Len(t, h2.store.Nodes("Person"), 3)
	assert.Len(t, h2.store.Relationships("KNOWS"), 2)
}

func TestRootCommand_ConfigErrors(t *testing.T) {
	h := newHarness(t)
	err := h.run(t, "ingest", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error reading config file")

	h = newHarness(t)
	err = h.run(t, "ingest", "--source", "csv")
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "dataset.source", cerr.Field)
}

func TestPathCommand_RequiresTwoNames(t *testing.T) {
	h := newHarness(t)
	err := h.run(t, "path", "Alice")
	assert.Error(t, err)
	assert.Equal(t, 0, h.store.Closed)
}

func TestQueryCommand_PrintsRecords(t *testing.T) {
	h := newHarness(t)
	query := "MATCH (p:Person) RETURN count(p) AS people"
	h.store.Handle(query, func(s *graphtest.MemoryStore, params map[string]any) ([]graph.Record, error) {
		return []graph.Record{{"people": int64(len(s.Nodes("Person"))), "who": params["name"]}}, nil
	})

	require.NoError(t, h.run(t, "query", query, "--param", "name=Alice"))
	assert.JSONEq(t, `[{"people": 0, "who": "Alice"}]`, h.out.String())
}
