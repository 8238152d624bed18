// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrSourceUnavailable = errors.New("data source unavailable")
	ErrInvalidArgument   = errors.New("invalid argument")
)
