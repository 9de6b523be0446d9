package fetcher

import (
	"time"

	"github.com/google/uuid"

	"github.com/rohmanhakim/curlgrab/internal/storage"
	"github.com/rohmanhakim/curlgrab/pkg/retry"
)

const bytesPerMegabyte = 1_048_576

const DefaultBufferSize = 32 * 1024

// HTTP boundary

// DownloadRequest names what to fetch and where to put it.
type DownloadRequest struct {
	Command  string
	Dir      string
	FileName string
}

// FetchParam carries per-fetcher transfer limits.
type FetchParam struct {
	timeout      time.Duration
	stallTimeout time.Duration
	bufferSize   int
	retryParam   retry.RetryParam
}

// NewFetchParam builds transfer limits. A zero timeout or stallTimeout disables it;
// a non-positive bufferSize selects DefaultBufferSize and fewer than one attempt means one.
func NewFetchParam(
	timeout time.Duration,
	stallTimeout time.Duration,
	bufferSize int,
	retryParam retry.RetryParam,
) FetchParam {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if retryParam.MaxAttempts < 1 {
		retryParam.MaxAttempts = 1
	}
	return FetchParam{
		timeout:      timeout,
		stallTimeout: stallTimeout,
		bufferSize:   bufferSize,
		retryParam:   retryParam,
	}
}

// DefaultFetchParam runs a single attempt without deadlines.
func DefaultFetchParam() FetchParam {
	return NewFetchParam(0, 0, DefaultBufferSize, retry.SingleAttempt())
}

// Progress

type ProgressEvent struct {
	id             uuid.UUID
	bytes          int64
	elapsed        time.Duration
	elapsedSeconds float64
}

func (p ProgressEvent) ID() uuid.UUID {
	return p.id
}

// Bytes is the cumulative count of bytes written to the destination.
func (p ProgressEvent) Bytes() int64 {
	return p.bytes
}

func (p ProgressEvent) Elapsed() time.Duration {
	return p.elapsed
}

func (p ProgressEvent) Megabytes() float64 {
	return float64(p.bytes) / bytesPerMegabyte
}

// ElapsedSeconds never reports zero and never decreases within one download.
func (p ProgressEvent) ElapsedSeconds() float64 {
	return p.elapsedSeconds
}

type progressTracker struct {
	id          uuid.UUID
	start       time.Time
	now         func() time.Time
	bytes       int64
	lastElapsed time.Duration
	lastSeconds float64
}

func newProgressTracker(id uuid.UUID, now func() time.Time) *progressTracker {
	return &progressTracker{
		id:    id,
		start: now(),
		now:   now,
	}
}

func (p *progressTracker) advance(n int64) ProgressEvent {
	p.bytes += n

	elapsed := p.now().Sub(p.start)
	if elapsed < p.lastElapsed {
		elapsed = p.lastElapsed
	}
	p.lastElapsed = elapsed

	seconds := elapsed.Seconds()
	if seconds == 0 {
		seconds = 1
	}
	if seconds < p.lastSeconds {
		seconds = p.lastSeconds
	}
	p.lastSeconds = seconds

	return ProgressEvent{
		id:             p.id,
		bytes:          p.bytes,
		elapsed:        elapsed,
		elapsedSeconds: seconds,
	}
}

// restart moves the start of the clock to now. Only valid before the first advance.
func (p *progressTracker) restart() {
	p.start = p.now()
}

// Terminal

// Outcome is the single terminal result of one download.
type Outcome struct {
	id       uuid.UUID
	result   storage.WriteResult
	elapsed  time.Duration
	attempts int
	err      *FetchError
}

func (o Outcome) ID() uuid.UUID {
	return o.id
}

func (o Outcome) Success() bool {
	return o.err == nil
}

func (o Outcome) Path() string {
	return o.result.Path()
}

func (o Outcome) FileName() string {
	return o.result.FileName()
}

func (o Outcome) Bytes() int64 {
	return o.result.Bytes()
}

// Checksum is the hex digest of the written file, empty when hashing is disabled.
func (o Outcome) Checksum() string {
	return o.result.Checksum()
}

// Elapsed covers the whole transfer, including connect and retries.
func (o Outcome) Elapsed() time.Duration {
	return o.elapsed
}

func (o Outcome) Attempts() int {
	return o.attempts
}

// Err returns nil on success and a *FetchError otherwise.
func (o Outcome) Err() error {
	if o.err == nil {
		return nil
	}
	return o.err
}

func (o Outcome) FetchError() *FetchError {
	return o.err
}

type EventKind int

const (
	EventProgress EventKind = iota
	EventSuccess
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is one item of a transfer's event stream.
// Progress is set for EventProgress, Outcome for the terminal kinds.
type Event struct {
	Kind     EventKind
	Progress ProgressEvent
	Outcome  Outcome
}

func (e Event) Terminal() bool {
	return e.Kind != EventProgress
}
