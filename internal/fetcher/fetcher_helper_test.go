package fetcher_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/curlgrab/internal/fetcher"
	"github.com/rohmanhakim/curlgrab/internal/metadata"
	"github.com/rohmanhakim/curlgrab/internal/storage"
	"github.com/rohmanhakim/curlgrab/pkg/hashutil"
	"github.com/rohmanhakim/curlgrab/pkg/retry"
	"github.com/rohmanhakim/curlgrab/pkg/timeutil"
)

// mockMetadataSink is a test double for metadata.MetadataSink
type mockMetadataSink struct {
	mu             sync.Mutex
	fetchEvents    []fetchEvent
	errorEvents    []errorEvent
	artifactEvents []string
}

type fetchEvent struct {
	fetchUrl         string
	httpStatus       int
	transferredBytes int64
	attempts         int
}

type errorEvent struct {
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
}

func (m *mockMetadataSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	transferredBytes int64,
	attempts int,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchEvents = append(m.fetchEvents, fetchEvent{
		fetchUrl:         fetchUrl,
		httpStatus:       httpStatus,
		transferredBytes: transferredBytes,
		attempts:         attempts,
	})
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorEvents = append(m.errorEvents, errorEvent{
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     details,
	})
}

func (m *mockMetadataSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifactEvents = append(m.artifactEvents, path)
}

// createTestRetryParam creates retry parameters for testing
func createTestRetryParam(maxAttempts int) retry.RetryParam {
	return retry.NewRetryParam(
		5*time.Millisecond, // jitter
		42,                 // randomSeed
		maxAttempts,        // maxAttempts
		timeutil.NewBackoffParam(
			10*time.Millisecond,
			2.0,
			50*time.Millisecond,
		),
	)
}

func newTestFetcher(t *testing.T, param fetcher.FetchParam) (*fetcher.StreamingFetcher, *mockMetadataSink) {
	t.Helper()
	mockSink := &mockMetadataSink{}
	sink := storage.NewLocalSink(mockSink, hashutil.HashAlgoSHA256)
	return fetcher.NewStreamingFetcher(mockSink, &sink, nil, param), mockSink
}

// curlFor builds a captured command the way a browser exports it.
func curlFor(target string, headers ...string) string {
	cmd := `curl ^"` + target + `^"`
	for _, h := range headers {
		cmd += " ^\n  -H ^\"" + h + "^\""
	}
	return cmd
}

// chunkedServer writes each chunk and flushes it separately.
func chunkedServer(t *testing.T, chunks [][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, chunk := range chunks {
			_, _ = w.Write(chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// stallingServer sends one chunk and then holds the response open until the client goes away.
func stallingServer(t *testing.T, first []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(first)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	return server
}
