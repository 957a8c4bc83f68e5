// Package dataset loads people and connections from upstream exports.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"socialgraph/internal/social"
)

// Dataset is one snapshot of the upstream social data.
type Dataset struct {
	People      []social.Person
	Connections []social.Connection
}

// Malformed counts the records that could not be decoded. They stay in
// place so ingestion rejects them at their original index.
func (ds *Dataset) Malformed() (people, connections int) {
	for _, p := range ds.People {
		if p.DecodeErr() != nil {
			people++
		}
	}
	for _, c := range ds.Connections {
		if c.DecodeErr() != nil {
			connections++
		}
	}
	return people, connections
}

// Source produces a Dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// JSONFiles reads a people export and a connections export, each a JSON
// array of objects. A file that is not a JSON array fails the load; a single
// record that does not decode becomes a malformed placeholder.
type JSONFiles struct {
	PeoplePath      string
	ConnectionsPath string
}

// Load implements Source.
func (f JSONFiles) Load(ctx context.Context) (*Dataset, error) {
	if f.PeoplePath == "" || f.ConnectionsPath == "" {
		return nil, fmt.Errorf("dataset: people and connections paths are required")
	}
	var (
		ds  Dataset
		err error
	)
	if ds.People, err = readRecords(ctx, f.PeoplePath, social.MalformedPerson); err != nil {
		return nil, err
	}
	if ds.Connections, err = readRecords(ctx, f.ConnectionsPath, social.MalformedConnection); err != nil {
		return nil, err
	}
	return &ds, nil
}

func readRecords[T any](ctx context.Context, path string, malformed func(error) T) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}
	out := make([]T, len(raw))
	for i, msg := range raw {
		if err := json.Unmarshal(msg, &out[i]); err != nil {
			out[i] = malformed(fmt.Errorf("%s record %d: %w", filepath.Base(path), i, err))
		}
	}
	return out, nil
}
