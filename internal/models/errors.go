package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound signals that no index has been ingested at the configured location.
	ErrIndexNotFound = errors.New("index not found")
	// ErrModelMismatch signals that the index was built with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrDimensionMismatch signals vectors of inconsistent length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// ModelMismatchError reports both embedding identities involved in a mismatch.
type ModelMismatchError struct {
	Indexed    string
	Configured string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("%s: index built with %q, configured %q", ErrModelMismatch, e.Indexed, e.Configured)
}

func (e *ModelMismatchError) Unwrap() error { return ErrModelMismatch }
