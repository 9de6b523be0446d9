package storage

import (
	"errors"
	"hash"
	"io"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/rohmanhakim/curlgrab/internal/metadata"
	"github.com/rohmanhakim/curlgrab/pkg/failure"
	"github.com/rohmanhakim/curlgrab/pkg/fileutil"
	"github.com/rohmanhakim/curlgrab/pkg/hashutil"
)

/*
Responsibilities
- Open the caller-chosen destination for writing
- Write every chunk straight through to the file
- Compute an optional checksum while writing
- Release the file handle on every exit path

Output Characteristics
- Existing files are truncated, never appended to
- No collision detection; the caller picks the name
- Aborted writes leave no file behind
*/

type Sink interface {
	Create(dir string, fileName string) (Writer, failure.ClassifiedError)
}

// Writer receives the body of one download.
// Exactly one of Commit or Abort must be called; Abort after Commit is a no-op.
type Writer interface {
	io.Writer
	Path() string
	Written() int64
	Commit() (WriteResult, failure.ClassifiedError)
	Abort() error
}

type LocalSink struct {
	metadataSink metadata.MetadataSink
	hashAlgo     hashutil.HashAlgo
	createDir    bool
}

func NewLocalSink(
	metadataSink metadata.MetadataSink,
	hashAlgo hashutil.HashAlgo,
) LocalSink {
	return LocalSink{
		metadataSink: metadataSink,
		hashAlgo:     hashAlgo,
	}
}

// WithCreateDir makes Create build a missing destination directory instead of failing.
func (s LocalSink) WithCreateDir() LocalSink {
	s.createDir = true
	return s
}

func (s *LocalSink) Create(dir string, fileName string) (Writer, failure.ClassifiedError) {
	w, err := s.create(dir, fileName)
	if err != nil {
		s.recordError("LocalSink.Create", err)
		return nil, err
	}
	return w, nil
}

func (s *LocalSink) create(dir string, fileName string) (*FileWriter, *StorageError) {
	path, pathErr := fileutil.DestinationPath(dir, fileName)
	if pathErr != nil {
		return nil, &StorageError{
			Message:   pathErr.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      dir,
			Err:       pathErr,
		}
	}

	if s.createDir {
		if dirErr := fileutil.EnsureDir(dir); dirErr != nil {
			return nil, &StorageError{
				Message:   dirErr.Error(),
				Retryable: false,
				Cause:     ErrCausePathError,
				Path:      dir,
				Err:       dirErr,
			}
		}
	}

	hasher, err := hashutil.NewHasher(s.hashAlgo)
	if err != nil {
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
			Path:      path,
			Err:       err,
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, classifyIOError(err, ErrCauseOpenFailure, path)
	}

	return &FileWriter{
		sink:     s,
		file:     f,
		path:     path,
		fileName: fileName,
		hasher:   hasher,
	}, nil
}

func (s *LocalSink) recordError(action string, err *StorageError) {
	s.metadataSink.RecordError(
		time.Now(),
		"storage",
		action,
		mapStorageErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, err.Path),
		},
	)
}

// FileWriter writes a download straight to its destination file.
type FileWriter struct {
	sink     *LocalSink
	file     *os.File
	path     string
	fileName string
	hasher   hash.Hash
	written  int64
	closed   bool
}

// Write hands p to the operating system before it is counted or hashed.
func (w *FileWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &StorageError{
			Message: "write after close",
			Cause:   ErrCauseWriteFailure,
			Path:    w.path,
			Err:     os.ErrClosed,
		}
	}

	n, err := w.file.Write(p)
	if n > 0 {
		w.written += int64(n)
		if w.hasher != nil {
			_, _ = w.hasher.Write(p[:n])
		}
	}
	if err != nil {
		storageErr := classifyIOError(err, ErrCauseWriteFailure, w.path)
		w.sink.recordError("FileWriter.Write", storageErr)
		return n, storageErr
	}
	return n, nil
}

func (w *FileWriter) Path() string {
	return w.path
}

func (w *FileWriter) Written() int64 {
	return w.written
}

// Commit closes the file and reports what was written.
// A failed close removes the file.
func (w *FileWriter) Commit() (WriteResult, failure.ClassifiedError) {
	if w.closed {
		return WriteResult{}, &StorageError{
			Message: "commit after close",
			Cause:   ErrCauseCloseFailure,
			Path:    w.path,
			Err:     os.ErrClosed,
		}
	}
	w.closed = true

	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.path)
		storageErr := classifyIOError(err, ErrCauseCloseFailure, w.path)
		w.sink.recordError("FileWriter.Commit", storageErr)
		return WriteResult{}, storageErr
	}

	result := NewWriteResult(w.path, w.fileName, w.written, hashutil.HexDigest(w.hasher))
	w.sink.metadataSink.RecordArtifact(
		metadata.ArtifactDownload,
		result.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrFileName, result.FileName()),
			metadata.NewAttr(metadata.AttrBytes, strconv.FormatInt(result.Bytes(), 10)),
			metadata.NewAttr(metadata.AttrChecksum, result.Checksum()),
		},
	)
	return result, nil
}

// Abort closes and removes the partially written file.
func (w *FileWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true

	closeErr := w.file.Close()
	removeErr := os.Remove(w.path)
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

func classifyIOError(err error, cause StorageErrorCause, path string) *StorageError {
	retryable := false
	if errors.Is(err, syscall.ENOSPC) {
		cause = ErrCauseDiskFull
		retryable = true
	}
	return &StorageError{
		Message:   err.Error(),
		Retryable: retryable,
		Cause:     cause,
		Path:      path,
		Err:       err,
	}
}
