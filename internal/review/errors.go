package review

import (
	"errors"
	"fmt"
)

// ErrNoData means nothing usable is stored yet: the key is absent or holds an empty list
var ErrNoData = errors.New("no stored reviews")

// ErrUnsynced means a write was held back because the stored list could not be read
var ErrUnsynced = errors.New("stored reviews not readable, write deferred")

// StorageReadError is a failed or unusable read of the stored review list.
// Load recovers from it and never returns it.
type StorageReadError struct {
	Key string
	Err error

	// Unavailable means the backend could not be reached, as opposed to
	// holding nothing usable. The stored list may still be intact.
	Unavailable bool
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("read reviews from %q: %v", e.Key, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError is a failed write of the review list. The in-memory
// list stays authoritative for the process.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write reviews to %q: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// ValidationError rejects a submission; nothing is appended
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsValidationError reports whether err is or wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
