package storage

import (
	"fmt"

	"github.com/rohmanhakim/curlgrab/internal/metadata"
	"github.com/rohmanhakim/curlgrab/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseDiskFull              StorageErrorCause = "disk is full"
	ErrCauseWriteFailure          StorageErrorCause = "write failed"
	ErrCauseOpenFailure           StorageErrorCause = "open failed"
	ErrCauseCloseFailure          StorageErrorCause = "close failed"
	ErrCausePathError             StorageErrorCause = "invalid destination"
	ErrCauseHashComputationFailed StorageErrorCause = "hash computation failed"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage error: %s", e.Cause)
	}
	return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStorageErrorToMetadataCause maps storage-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	if err == nil {
		return metadata.CauseUnknown
	}
	switch err.Cause {
	case ErrCauseDiskFull, ErrCauseWriteFailure, ErrCauseOpenFailure, ErrCauseCloseFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
