package storage

import pkgerrors "caretrack/pkg/errors"

var (
	// ErrNotFound keeps storage-specific 404s consistent across in-memory and
	// PostgreSQL implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
)
