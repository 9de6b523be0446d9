package fileutil

import (
	"fmt"

	"github.com/rohmanhakim/curlgrab/pkg/failure"
)

type FileErrorCause string

const (
	ErrCausePathError     FileErrorCause = "path error"
	ErrCauseEmptyFileName FileErrorCause = "empty file name"
	ErrCauseNotADirectory FileErrorCause = "not a directory"
)

type FileError struct {
	Message   string
	Retryable bool
	Cause     FileErrorCause
}

func (e *FileError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("file error: %s", e.Cause)
	}
	return fmt.Sprintf("file error: %s: %s", e.Cause, e.Message)
}

func (e *FileError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}
