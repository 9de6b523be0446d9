package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohmanhakim/curlgrab/internal/command"
	"github.com/rohmanhakim/curlgrab/internal/logging"
	"github.com/rohmanhakim/curlgrab/internal/metadata"
	"github.com/rohmanhakim/curlgrab/internal/storage"
	"github.com/rohmanhakim/curlgrab/pkg/failure"
	"github.com/rohmanhakim/curlgrab/pkg/retry"
	"github.com/rohmanhakim/curlgrab/pkg/urlutil"
)

/*
Responsibilities

- Translate a captured command into a GET request
- Perform the request and check its status
- Stream the body into the destination file
- Report progress and exactly one terminal outcome

Fetch Semantics

- No file is created unless the response status is 2xx
- Progress is emitted after a chunk was handed to the file
- Retries cover connect and status only, never a started body
- A failed or cancelled download leaves no file behind
*/

type (
	ProgressFunc func(ProgressEvent)
	SuccessFunc  func(Outcome)
	ErrorFunc    func(*FetchError)
)

type Fetcher interface {
	Download(
		ctx context.Context,
		req DownloadRequest,
		onProgress ProgressFunc,
		onSuccess SuccessFunc,
		onError ErrorFunc,
	)
	Start(ctx context.Context, req DownloadRequest) *Transfer
}

type StreamingFetcher struct {
	metadataSink metadata.MetadataSink
	sink         storage.Sink
	translator   command.Translator
	httpClient   *http.Client
	param        FetchParam
	now          func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewStreamingFetcher wires a fetcher. A nil httpClient selects a client without
// an overall timeout; deadlines come from param instead.
func NewStreamingFetcher(
	metadataSink metadata.MetadataSink,
	sink storage.Sink,
	httpClient *http.Client,
	param FetchParam,
) *StreamingFetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &StreamingFetcher{
		metadataSink: metadataSink,
		sink:         sink,
		translator:   command.NewCmdTranslator(),
		httpClient:   httpClient,
		param:        param,
		now:          time.Now,
		inflight:     make(map[string]struct{}),
	}
}

// SetClockForTest replaces the clock used for elapsed time.
func (f *StreamingFetcher) SetClockForTest(now func() time.Time) {
	f.now = now
}

// Download blocks until the download ends. onProgress may be nil;
// exactly one of onSuccess or onError is called.
func (f *StreamingFetcher) Download(
	ctx context.Context,
	req DownloadRequest,
	onProgress ProgressFunc,
	onSuccess SuccessFunc,
	onError ErrorFunc,
) {
	emit := func(p ProgressEvent) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	outcome := f.run(ctx, uuid.New(), req, emit)
	if outcome.Success() {
		if onSuccess != nil {
			onSuccess(outcome)
		}
		return
	}
	if onError != nil {
		onError(outcome.err)
	}
}

// Start runs the download in its own goroutine.
// The caller must either drain Events or call Wait.
func (f *StreamingFetcher) Start(ctx context.Context, req DownloadRequest) *Transfer {
	ctx, cancel := context.WithCancelCause(ctx)
	t := &Transfer{
		id:     uuid.New(),
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel(nil)

		emit := func(p ProgressEvent) {
			select {
			case t.events <- Event{Kind: EventProgress, Progress: p}:
			case <-ctx.Done():
			}
		}

		outcome := f.run(ctx, t.id, req, emit)
		t.outcome = outcome

		kind := EventSuccess
		if !outcome.Success() {
			kind = EventFailure
		}
		t.events <- Event{Kind: kind, Outcome: outcome}
		close(t.events)
	}()

	return t
}

func (f *StreamingFetcher) run(
	ctx context.Context,
	id uuid.UUID,
	req DownloadRequest,
	emit func(ProgressEvent),
) Outcome {
	callerMethod := "StreamingFetcher.Download"
	ctx = logging.WithDownloadID(logging.WithComponent(ctx, "fetcher"), id.String())
	logger := logging.FromContext(ctx)
	started := f.now()
	tracker := newProgressTracker(id, f.now)

	var (
		target     string
		statusCode int
		attempts   int
	)

	finish := func(result storage.WriteResult, err *FetchError) Outcome {
		elapsed := f.now().Sub(started)
		if elapsed < 0 {
			elapsed = 0
		}
		if attempts > 0 {
			f.metadataSink.RecordFetch(target, statusCode, elapsed, tracker.bytes, attempts)
		}
		if err != nil {
			f.recordFetchError(callerMethod, id, target, err)
			logger.Warn().Err(err).Int64("bytes", tracker.bytes).Msg("download failed")
		} else {
			logger.Info().
				Str("path", result.Path()).
				Int64("bytes", result.Bytes()).
				Dur("elapsed", elapsed).
				Msg("download complete")
		}
		return Outcome{
			id:       id,
			result:   result,
			elapsed:  elapsed,
			attempts: attempts,
			err:      err,
		}
	}

	parsed := f.translator.Translate(ctx, req.Command)
	if !parsed.Usable() {
		return finish(storage.WriteResult{}, &FetchError{
			Kind:    KindParseFailure,
			Cause:   ErrCauseUnparsableCommand,
			Message: string(ErrCauseUnparsableCommand),
		})
	}

	target, err := urlutil.WithQuery(parsed.URL, parsed.Params)
	if err != nil {
		return finish(storage.WriteResult{}, &FetchError{
			Kind:    KindParseFailure,
			Cause:   ErrCauseInvalidURL,
			Message: err.Error(),
			Err:     err,
		})
	}

	release, acquired := f.acquire(destinationKey(req.Dir, req.FileName))
	if !acquired {
		return finish(storage.WriteResult{}, &FetchError{
			Kind:    KindFilesystemFailure,
			Cause:   ErrCauseDestinationBusy,
			Message: fmt.Sprintf("another download is writing %s", filepath.Join(req.Dir, req.FileName)),
		})
	}
	defer release()

	if f.param.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, f.param.timeout, errTimeout)
		defer cancelTimeout()
	}
	ctx, wd := newWatchdog(ctx, f.param.stallTimeout)
	defer wd.Stop()

	logger.Debug().Str("url", target).Int("headers", len(parsed.Headers)).Msg("requesting")

	result := retry.Retry(ctx, f.param.retryParam, func() (*http.Response, failure.ClassifiedError) {
		wd.Kick()
		return f.open(ctx, target, parsed.Headers)
	})
	attempts = result.Attempts()
	if result.IsFailure() {
		statusCode = statusOf(result.Err())
		return finish(storage.WriteResult{}, fromRetryResult(ctx, result.Err()))
	}

	resp := result.Value()
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	writer, storageErr := f.sink.Create(req.Dir, req.FileName)
	if storageErr != nil {
		return finish(storage.WriteResult{}, fromStorageError(storageErr))
	}
	// progress is timed from the first body read, not from connect or retries
	tracker.restart()

	if streamErr := f.stream(ctx, resp.Body, writer, wd, tracker, emit); streamErr != nil {
		if abortErr := writer.Abort(); abortErr != nil {
			logger.Error().Err(abortErr).Str("path", writer.Path()).Msg("cannot remove partial file")
		}
		return finish(storage.WriteResult{}, streamErr)
	}

	written, commitErr := writer.Commit()
	if commitErr != nil {
		return finish(storage.WriteResult{}, fromStorageError(commitErr))
	}
	return finish(written, nil)
}

// open performs one GET and accepts only 2xx responses.
func (f *StreamingFetcher) open(
	ctx context.Context,
	target string,
	headers map[string]string,
) (*http.Response, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{
			Kind:    KindParseFailure,
			Cause:   ErrCauseInvalidURL,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}
	for name, value := range headers {
		if transportManaged(name) {
			continue
		}
		// direct assignment keeps the captured casing
		req.Header[name] = []string{value}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctxErr := fromContext(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FetchError{
			Kind:      KindTransportFailure,
			Cause:     ErrCauseNetworkFailure,
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Err:       err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()

	statusErr := &FetchError{
		Kind:    KindTransportFailure,
		Cause:   ErrCauseUnexpectedStatus,
		Message: fmt.Sprintf("failed to download: %s", resp.Status),
		Err:     &statusError{code: resp.StatusCode},
	}
	switch {
	case resp.StatusCode >= 500:
		statusErr.Cause = ErrCauseRequest5xx
		statusErr.Retryable = true
		statusErr.Delay = retryAfter(resp.Header.Get("Retry-After"), f.now())
	case resp.StatusCode == http.StatusTooManyRequests:
		statusErr.Cause = ErrCauseRequestTooMany
		statusErr.Retryable = true
		statusErr.Delay = retryAfter(resp.Header.Get("Retry-After"), f.now())
	}
	return nil, statusErr
}

// transportManaged reports headers the http transport sets itself. A captured
// Accept-Encoding is dropped like curl --compressed so the transport negotiates gzip
// and decodes the body before it reaches disk.
func transportManaged(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Accept-Encoding", "Host", "Content-Length":
		return true
	}
	return false
}

// retryAfter parses a Retry-After value given either as delay seconds or as an HTTP date.
func retryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(value)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now)
}

func (f *StreamingFetcher) stream(
	ctx context.Context,
	body io.Reader,
	writer storage.Writer,
	wd *watchdog,
	tracker *progressTracker,
	emit func(ProgressEvent),
) *FetchError {
	buf := make([]byte, f.param.bufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			wd.Kick()
			if _, err := writer.Write(buf[:n]); err != nil {
				return &FetchError{
					Kind:    KindFilesystemFailure,
					Cause:   ErrCauseStorage,
					Message: err.Error(),
					Err:     err,
				}
			}
			emit(tracker.advance(int64(n)))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctxErr := fromContext(ctx); ctxErr != nil {
				return ctxErr
			}
			return &FetchError{
				Kind:    KindTransportFailure,
				Cause:   ErrCauseReadResponseBodyError,
				Message: readErr.Error(),
				Err:     readErr,
			}
		}
	}

	// a cancellation that raced the final read still wins
	if ctxErr := fromContext(ctx); ctxErr != nil {
		return ctxErr
	}
	return nil
}

func (f *StreamingFetcher) acquire(key string) (func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inflight[key]; busy {
		return nil, false
	}
	f.inflight[key] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.inflight, key)
		f.mu.Unlock()
	}, true
}

func (f *StreamingFetcher) recordFetchError(callerMethod string, id uuid.UUID, target string, err *FetchError) {
	f.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		mapFetchErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, target),
			metadata.NewAttr(metadata.AttrDownloadID, id.String()),
		},
	)
}

func destinationKey(dir string, fileName string) string {
	path := filepath.Join(dir, fileName)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// fromContext classifies a finished context, or returns nil while it is live.
func fromContext(ctx context.Context) *FetchError {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errStalled):
		return &FetchError{
			Kind:    KindTransportFailure,
			Cause:   ErrCauseStalled,
			Message: cause.Error(),
			Err:     cause,
		}
	case errors.Is(cause, errTimeout):
		return &FetchError{
			Kind:    KindTransportFailure,
			Cause:   ErrCauseTimeout,
			Message: cause.Error(),
			Err:     cause,
		}
	default:
		return &FetchError{
			Kind:    KindCancelled,
			Cause:   ErrCauseCancelled,
			Message: cause.Error(),
			Err:     cause,
		}
	}
}

func fromRetryResult(ctx context.Context, err failure.ClassifiedError) *FetchError {
	var retryErr *retry.RetryError
	if !errors.As(err, &retryErr) {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return fetchErr
		}
		return &FetchError{
			Kind:    KindTransportFailure,
			Cause:   ErrCauseNetworkFailure,
			Message: err.Error(),
			Err:     err,
		}
	}

	if retryErr.Cause == retry.ErrInterrupted {
		if ctxErr := fromContext(ctx); ctxErr != nil {
			return ctxErr
		}
	}

	var last *FetchError
	if errors.As(retryErr.Last, &last) {
		return &FetchError{
			Kind:    last.Kind,
			Cause:   last.Cause,
			Message: retryErr.Message,
			Err:     retryErr,
		}
	}
	return &FetchError{
		Kind:    KindTransportFailure,
		Cause:   ErrCauseNetworkFailure,
		Message: retryErr.Error(),
		Err:     retryErr,
	}
}

func fromStorageError(err failure.ClassifiedError) *FetchError {
	return &FetchError{
		Kind:    KindFilesystemFailure,
		Cause:   ErrCauseStorage,
		Message: err.Error(),
		Err:     err,
	}
}

// statusError carries a non-2xx status code for errors.As.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d", e.code)
}

func statusOf(err error) int {
	var s *statusError
	if errors.As(err, &s) {
		return s.code
	}
	return 0
}

// Transfer is the handle of a download started with Start.
type Transfer struct {
	id      uuid.UUID
	events  chan Event
	cancel  context.CancelCauseFunc
	done    chan struct{}
	outcome Outcome
}

func (t *Transfer) ID() uuid.UUID {
	return t.id
}

// Events yields zero or more progress events, then one terminal event, then closes.
func (t *Transfer) Events() <-chan Event {
	return t.events
}

// Cancel stops the download; the terminal event reports KindCancelled.
func (t *Transfer) Cancel() {
	t.cancel(ErrCancelled)
}

// Done is closed after the terminal event was received.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Wait discards undelivered events and returns the terminal outcome.
func (t *Transfer) Wait() Outcome {
	for range t.events {
	}
	<-t.done
	return t.outcome
}

var _ Fetcher = (*StreamingFetcher)(nil)
