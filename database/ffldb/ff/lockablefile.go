package ff

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// lockableFile represents a flat file on disk that has been opened for either
// read or read/write access. It also contains a read-write mutex to support
// multiple concurrent readers.
type lockableFile struct {
	sync.RWMutex
	file
}

// file is the subset of *os.File methods a flat file store uses. It exists
// so tests can swap in failing implementations.
type file interface {
	io.Closer
	io.WriterAt
	io.ReaderAt
	Truncate(size int64) error
	Sync() error
}

// Close closes the underlying file, if any. It does not take the file's lock.
func (lf *lockableFile) Close() error {
	if lf.file == nil {
		return nil
	}
	err := lf.file.Close()
	lf.file = nil
	return errors.WithStack(err)
}
