package storage

// Persistence

type WriteResult struct {
	path     string
	fileName string
	bytes    int64
	checksum string // hex digest, empty when hashing is disabled
}

func NewWriteResult(
	path string,
	fileName string,
	bytes int64,
	checksum string,
) WriteResult {
	return WriteResult{
		path:     path,
		fileName: fileName,
		bytes:    bytes,
		checksum: checksum,
	}
}

func (w WriteResult) Path() string {
	return w.path
}

func (w WriteResult) FileName() string {
	return w.fileName
}

func (w WriteResult) Bytes() int64 {
	return w.bytes
}

func (w WriteResult) Checksum() string {
	return w.checksum
}
