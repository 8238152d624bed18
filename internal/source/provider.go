// Package source fetches raw task records from the spreadsheet backing the
// dashboard.
package source

import "context"

// Provider is the interface for task sheet reads.
type Provider interface {
	// Fetch returns every record of the sheet, header row first. Cells are
	// plain strings; rows may be ragged.
	Fetch(ctx context.Context) ([][]string, error)
	// Name describes the source for logs and snapshot metadata.
	Name() string
}
