// Package testutil provides shared test helpers for building task tables,
// CSV sources, and history databases.
package testutil

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/starford/opsdash/internal/table"
)

// Table builds a table from headers and positional rows.
func Table(t *testing.T, headers []string, rows [][]string) *table.Table {
	t.Helper()
	rowMaps := make([]table.Row, len(rows))
	for i, r := range rows {
		if len(r) != len(headers) {
			t.Fatalf("row %d has %d cells, want %d", i, len(r), len(headers))
		}
		m := make(table.Row, len(headers))
		for j, h := range headers {
			m[h] = r[j]
		}
		rowMaps[i] = m
	}
	return table.New(headers, rowMaps)
}

// WriteCSV writes records to name inside a temp directory and returns the path.
func WriteCSV(t *testing.T, name string, records [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// TempDBPath returns a SQLite file path that is removed when the test ends.
func TempDBPath(t *testing.T) string {
	t.Helper()
	dbFile, err := os.CreateTemp("", "opsdash-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	return dbFile.Name()
}

// Logger returns a JSON logger that only emits errors, keeping test output quiet.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Provider is an in-memory source.Provider whose records can be swapped
// between fetches.
type Provider struct {
	mu      sync.Mutex
	records [][]string
	err     error
	calls   atomic.Int32
	// Gate, when set, blocks Fetch until it is closed.
	Gate chan struct{}
}

// NewProvider returns a Provider serving records.
func NewProvider(records [][]string) *Provider {
	return &Provider{records: records}
}

// Set replaces the served records and clears any error.
func (p *Provider) Set(records [][]string) {
	p.mu.Lock()
	p.records, p.err = records, nil
	p.mu.Unlock()
}

// Fail makes subsequent fetches return err.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Calls reports how many fetches reached the provider.
func (p *Provider) Calls() int {
	return int(p.calls.Load())
}

func (p *Provider) Fetch(ctx context.Context) ([][]string, error) {
	p.calls.Add(1)
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]string, len(p.records))
	for i, r := range p.records {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (p *Provider) Name() string { return "memory" }
