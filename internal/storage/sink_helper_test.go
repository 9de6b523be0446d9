package storage_test

import (
	"sync"
	"time"

	"github.com/rohmanhakim/curlgrab/internal/metadata"
)

type recordedError struct {
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
	attrs       []metadata.Attribute
}

type recordedArtifact struct {
	kind  metadata.ArtifactKind
	path  string
	attrs []metadata.Attribute
}

// metadataSinkMock collects records for assertions.
type metadataSinkMock struct {
	mu        sync.Mutex
	errors    []recordedError
	artifacts []recordedArtifact
}

func (m *metadataSinkMock) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, recordedError{
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     details,
		attrs:       attrs,
	})
}

func (m *metadataSinkMock) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	transferredBytes int64,
	attempts int,
) {
}

func (m *metadataSinkMock) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, recordedArtifact{kind: kind, path: path, attrs: attrs})
}

func attrValue(attrs []metadata.Attribute, key metadata.AttributeKey) (string, bool) {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}
