package ff

import (
	"hash/crc32"
	"os"

	"github.com/ledgerkit/ledgerd/database"
	"github.com/pkg/errors"
)

// read reads the flat file record at the given location and verifies its
// checksum. It returns ErrNotFound if the location lies at or beyond the
// current write cursor.
//
// Format: <data length><data><checksum>
func (s *flatFileStore) read(location *flatFileLocation) ([]byte, error) {
	if s.isClosed {
		return nil, errors.Errorf("cannot read from a closed store %s",
			s.storeName)
	}

	if !s.isBeforeWriteCursor(location) {
		return nil, errors.Wrapf(database.ErrNotFound, "location %s in store '%s'",
			location, s.storeName)
	}
	if location.dataLength < uint32(dataLengthLength+crc32ChecksumLength) {
		return nil, errors.Errorf("location %s in store '%s' is too short "+
			"to hold a record", location, s.storeName)
	}

	flatFile, err := s.flatFile(location.fileNumber)
	if err != nil {
		return nil, err
	}

	data := make([]byte, location.dataLength)
	n, err := flatFile.file.ReadAt(data, int64(location.fileOffset))
	flatFile.RUnlock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read data in store '%s' "+
			"from file %d, offset %d", s.storeName, location.fileNumber,
			location.fileOffset)
	}

	serializedLength := byteOrder.Uint32(data[:dataLengthLength])
	if int(serializedLength) != n-dataLengthLength-crc32ChecksumLength {
		return nil, errors.Errorf("data length in store '%s' at file %d, "+
			"offset %d is %d but the location covers %d bytes", s.storeName,
			location.fileNumber, location.fileOffset, serializedLength,
			n-dataLengthLength-crc32ChecksumLength)
	}

	serializedChecksum := crc32ByteOrder.Uint32(data[n-crc32ChecksumLength:])
	calculatedChecksum := crc32.Checksum(data[:n-crc32ChecksumLength], castagnoli)
	if serializedChecksum != calculatedChecksum {
		return nil, errors.Errorf("data in store '%s' does not match "+
			"checksum - got %x, want %x", s.storeName, calculatedChecksum,
			serializedChecksum)
	}

	// The data excludes the length of the data and the checksum.
	return data[dataLengthLength : n-crc32ChecksumLength], nil
}

func (s *flatFileStore) isBeforeWriteCursor(location *flatFileLocation) bool {
	s.writeCursor.RLock()
	defer s.writeCursor.RUnlock()

	if location.fileNumber != s.writeCursor.currentFileNumber {
		return location.fileNumber < s.writeCursor.currentFileNumber
	}
	return location.fileOffset < s.writeCursor.currentOffset &&
		location.fileOffset+location.dataLength <= s.writeCursor.currentOffset
}

// flatFile returns a handle for the given file number with its read lock
// already held. The caller MUST call RUnlock once done reading.
func (s *flatFileStore) flatFile(fileNumber uint32) (*lockableFile, error) {
	// The file currently being written to is served from the write cursor.
	s.writeCursor.RLock()
	if fileNumber == s.writeCursor.currentFileNumber && s.writeCursor.currentFile.file != nil {
		openFile := s.writeCursor.currentFile
		openFile.RLock()
		s.writeCursor.RUnlock()
		return openFile, nil
	}
	s.writeCursor.RUnlock()

	s.openFilesMutex.RLock()
	if openFile, ok := s.openFiles.Get(fileNumber); ok {
		openFile.RLock()
		s.openFilesMutex.RUnlock()
		return openFile, nil
	}
	s.openFilesMutex.RUnlock()

	// Check again under the write lock in case a concurrent reader opened
	// the file in the meantime.
	s.openFilesMutex.Lock()
	defer s.openFilesMutex.Unlock()
	if openFile, ok := s.openFiles.Get(fileNumber); ok {
		openFile.RLock()
		return openFile, nil
	}

	filePath := flatFilePath(s.basePath, s.storeName, fileNumber)
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	openFile := &lockableFile{file: file}
	openFile.RLock()

	// Adding may evict the least recently used handle. Eviction takes that
	// file's write lock, which waits for its remaining readers.
	s.openFiles.Add(fileNumber, openFile)
	return openFile, nil
}
