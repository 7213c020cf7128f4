package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session id does not exist
	ErrNotFound = errors.New("session not found")
	// ErrStoreClosed is returned for operations on a closed or uninitialized store
	ErrStoreClosed = errors.New("store is closed")
)

// StorageError represents a failure reported by the storage engine
type StorageError struct {
	Op  string // "open", "init", "create", "update", "delete", "query"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError represents malformed caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err signals a missing session
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
