package types

import (
	"errors"
	"fmt"
)

// Store lifecycle errors.
var (
	ErrStoreClosed = errors.New("store is closed")
	ErrAlreadyOpen = errors.New("store is already open")
)

// Validation errors, raised before persistence. A rejected input
// leaves no partial write behind.
var (
	ErrUnknownIncidentType = errors.New("unknown incident type")
	ErrInvalidSeverity     = errors.New("severity must be between 1 and 5")
	ErrPhotoTooLarge       = errors.New("photo exceeds the size cap")
	ErrEmptyResponder      = errors.New("responder name must not be empty")
)

// ErrNoSession indicates no session row exists; the device is
// unauthenticated.
var ErrNoSession = errors.New("no active session")

// ErrPositionUnavailable indicates the positioning source failed or
// timed out. Callers substitute the default coordinate pair and report
// the condition as a status flag only.
var ErrPositionUnavailable = errors.New("position unavailable")

// StorageError wraps a storage-layer failure (quota exhaustion,
// corruption, I/O). Fatal to the attempted operation, harmless to
// other records.
type StorageError struct {
	Op  string // operation that failed, e.g. "create report"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NetworkError wraps a transient transport failure. The sync engine
// absorbs it into outcome Failed; it is never surfaced as data loss.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
