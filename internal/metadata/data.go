package metadata

import (
	"time"
)

type FetchEvent struct {
	fetchUrl         string
	httpStatus       int
	duration         time.Duration
	transferredBytes int64
	attempts         int
}

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry or abort decisions.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

  - The failure does not map cleanly to any known category.

# CauseInvalidCommand

  - The captured command yielded no usable URL.

# CauseNetworkFailure

  - Transport failure: DNS, connection reset, read error, stall timeout.

# CauseHTTPStatus

  - The endpoint answered with a status outside 2xx.

# CauseStorageFailure

  - The destination could not be opened, written or closed.

# CauseCancelled

  - The caller cancelled the download or its deadline expired.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseInvalidCommand
	CauseNetworkFailure
	CauseHTTPStatus
	CauseStorageFailure
	CauseCancelled
)

func (c ErrorCause) String() string {
	switch c {
	case CauseInvalidCommand:
		return "invalid_command"
	case CauseNetworkFailure:
		return "network_failure"
	case CauseHTTPStatus:
		return "http_status"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type ArtifactKind string

const (
	ArtifactDownload ArtifactKind = "download"
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrDownloadID AttributeKey = "download_id"
	AttrWritePath  AttributeKey = "write_path"
	AttrFileName   AttributeKey = "file_name"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrBytes      AttributeKey = "bytes"
	AttrChecksum   AttributeKey = "checksum"
	AttrMessage    AttributeKey = "message"
)
