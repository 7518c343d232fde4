package dedup

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable aborts a scan when not a single root could be listed.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrNoContentHash marks objects the backend holds no digest for.
	ErrNoContentHash = errors.New("no content hash")
	// ErrContentChanged marks a file whose hash or size no longer matches its group.
	ErrContentChanged = errors.New("content changed since scan")
	// ErrInvalidState is returned by AuditSession on an illegal transition.
	ErrInvalidState = errors.New("invalid audit session state")
)

// EnumerationError means a folder could not be listed and was skipped.
type EnumerationError struct {
	Path string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("list folder %s: %v", e.Path, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// FingerprintError means an object was excluded from deduplication.
type FingerprintError struct {
	Path string
	Err  error
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("fingerprint %s: %v", e.Path, e.Err)
}

func (e *FingerprintError) Unwrap() error { return e.Err }

// MigrationError means references to a loser could not be repointed, so the
// loser was kept.
type MigrationError struct {
	Path string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate references of %s: %v", e.Path, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// DeletionError means a loser whose references were migrated could not be deleted.
type DeletionError struct {
	Path string
	Err  error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Path, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }
