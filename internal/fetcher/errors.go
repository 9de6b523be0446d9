package fetcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/rohmanhakim/curlgrab/internal/metadata"
	"github.com/rohmanhakim/curlgrab/pkg/failure"
)

type ErrorKind int

const (
	KindParseFailure ErrorKind = iota
	KindTransportFailure
	KindFilesystemFailure
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindParseFailure:
		return "parse failure"
	case KindTransportFailure:
		return "transport failure"
	case KindFilesystemFailure:
		return "filesystem failure"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type FetchErrorCause string

const (
	ErrCauseUnparsableCommand     FetchErrorCause = "cannot parse URL from command"
	ErrCauseInvalidURL            FetchErrorCause = "invalid request url"
	ErrCauseNetworkFailure        FetchErrorCause = "network issues"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCauseUnexpectedStatus      FetchErrorCause = "unexpected status"
	ErrCauseRequestTooMany        FetchErrorCause = "too many requests"
	ErrCauseRequest5xx            FetchErrorCause = "5xx"
	ErrCauseTimeout               FetchErrorCause = "timeout"
	ErrCauseStalled               FetchErrorCause = "stalled"
	ErrCauseStorage               FetchErrorCause = "storage failure"
	ErrCauseDestinationBusy       FetchErrorCause = "destination busy"
	ErrCauseCancelled             FetchErrorCause = "cancelled"
)

var (
	// ErrCancelled is the cancellation cause of Transfer.Cancel.
	ErrCancelled = errors.New("download cancelled")
	errTimeout   = errors.New("download deadline exceeded")
	errStalled   = errors.New("no data received within the stall timeout")
)

type FetchError struct {
	Kind      ErrorKind
	Cause     FetchErrorCause
	Message   string
	Retryable bool
	Err       error

	// Wait requested by the server through Retry-After, zero when absent.
	Delay time.Duration
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fetcher error: %s: %s", e.Kind, e.Cause)
	}
	return fmt.Sprintf("fetcher error: %s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

func (e *FetchError) RetryAfter() time.Duration {
	return e.Delay
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Kind {
	case KindParseFailure:
		return metadata.CauseInvalidCommand
	case KindFilesystemFailure:
		return metadata.CauseStorageFailure
	case KindCancelled:
		return metadata.CauseCancelled
	}
	switch err.Cause {
	case ErrCauseUnexpectedStatus, ErrCauseRequestTooMany, ErrCauseRequest5xx:
		return metadata.CauseHTTPStatus
	case ErrCauseNetworkFailure, ErrCauseReadResponseBodyError, ErrCauseTimeout, ErrCauseStalled:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
