package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/curlgrab/pkg/failure"
)

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	target := filepath.Join(targetPath...)
	if err := os.MkdirAll(target, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// DestinationPath joins the caller-supplied directory and file name.
// No collision detection is performed; an existing file is truncated on open.
// The file name must be a single path element.
func DestinationPath(dir string, fileName string) (string, failure.ClassifiedError) {
	name := strings.TrimSpace(fileName)
	if name == "" || name == "." || name == ".." {
		return "", &FileError{
			Message: fmt.Sprintf("%q", fileName),
			Cause:   ErrCauseEmptyFileName,
		}
	}
	if strings.ContainsAny(name, `/\`) {
		return "", &FileError{
			Message: fmt.Sprintf("file name %q contains a path separator", fileName),
			Cause:   ErrCausePathError,
		}
	}

	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return "", &FileError{
				Message: err.Error(),
				Cause:   ErrCausePathError,
			}
		}
		if !info.IsDir() {
			return "", &FileError{
				Message: dir,
				Cause:   ErrCauseNotADirectory,
			}
		}
	}

	return filepath.Join(dir, name), nil
}
