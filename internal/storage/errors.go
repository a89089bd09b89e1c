package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Ledger tables are append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict is returned when an optimistic update observes a
	// version other than the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrStateConflict is returned when a conditional status transition finds
	// the record in a different state than expected.
	ErrStateConflict = errors.New("state conflict")
)
