package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const utf8BOM = "\ufeff"

// CSV implements Provider over a sheet exported to a local CSV file.
type CSV struct {
	path string // absolute
}

// NewCSV creates a CSV provider. The file must already exist.
func NewCSV(path string) (*CSV, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("source: resolve csv path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: stat csv: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source: csv path is a directory: %s", abs)
	}
	return &CSV{path: abs}, nil
}

// Path returns the absolute file path.
func (c *CSV) Path() string {
	return c.path
}

// Name implements Provider.
func (c *CSV) Name() string {
	return "csv:" + filepath.Base(c.path)
}

// Fetch reads the whole file.
func (c *CSV) Fetch(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("source: open csv %s: %w", c.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("source: parse csv %s: %w", c.path, err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], utf8BOM)
	}
	return records, nil
}
