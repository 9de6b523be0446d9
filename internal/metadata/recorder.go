package metadata

import (
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch durations and HTTP status codes
- Transferred byte counts and retry attempts
- Written artifacts with checksums
- Classified failures

Metadata is write-only.
No component may read metadata to influence download decisions.
*/

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		transferredBytes int64,
		attempts int,
	)

	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

/*
Recorder writes each metadata record as one structured log event.
Events are written synchronously in the order they are received.
*/
type Recorder struct {
	logger zerolog.Logger
}

func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{
		logger: logger.With().Str("component", "metadata").Logger(),
	}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	event := r.logger.Error().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Stringer("cause", cause).
		Str("details", details)
	withAttrs(event, attrs).Msg("download error")
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	transferredBytes int64,
	attempts int,
) {
	ev := FetchEvent{
		fetchUrl:         fetchUrl,
		httpStatus:       httpStatus,
		duration:         duration,
		transferredBytes: transferredBytes,
		attempts:         attempts,
	}
	r.logger.Info().
		Str("url", ev.fetchUrl).
		Int("http_status", ev.httpStatus).
		Dur("duration", ev.duration).
		Int64("bytes", ev.transferredBytes).
		Int("attempts", ev.attempts).
		Msg("fetch")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	event := r.logger.Info().
		Str("kind", string(kind)).
		Str("path", path)
	withAttrs(event, attrs).Msg("artifact")
}

func withAttrs(event *zerolog.Event, attrs []Attribute) *zerolog.Event {
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	return event
}

// NoopSink, struct that implements metadata.MetadataSink but does nothing
// Callers (or tests) decide whether to inject Recorder or NoopSink

type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	transferredBytes int64,
	attempts int,
) {
}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}
