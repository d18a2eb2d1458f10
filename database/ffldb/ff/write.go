package ff

import (
	"hash/crc32"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// write appends the given data to the store and returns the location of the
// written record. Records never straddle two files: when a record does not
// fit in the current file the cursor moves to the start of the next one.
//
// Format: <data length><data><checksum>
func (s *flatFileStore) write(data []byte) (*flatFileLocation, error) {
	if s.isClosed {
		return nil, errors.Errorf("cannot write to a closed store %s",
			s.storeName)
	}

	dataLength := uint32(len(data))
	fullLength := uint32(dataLengthLength) + dataLength + uint32(crc32ChecksumLength)
	if fullLength > maxFileSize || fullLength < dataLength {
		return nil, errors.Errorf("data of %d bytes does not fit in a "+
			"single file of store '%s'", dataLength, s.storeName)
	}

	cursor := s.writeCursor
	cursor.Lock()
	defer cursor.Unlock()

	if cursor.currentOffset+fullLength > maxFileSize || cursor.currentOffset+fullLength < cursor.currentOffset {
		// Close the current write file to force a read-only reopen with
		// LRU tracking.
		cursor.currentFile.Lock()
		err := cursor.currentFile.Close()
		cursor.currentFile.Unlock()
		if err != nil {
			return nil, err
		}

		cursor.currentFileNumber++
		cursor.currentOffset = 0
	}

	// Open the current file for writing if needed. The handle is kept
	// open until the file is full.
	cursor.currentFile.Lock()
	defer cursor.currentFile.Unlock()
	if cursor.currentFile.file == nil {
		err := s.openWriteFile(cursor)
		if err != nil {
			return nil, err
		}
	}

	originalOffset := cursor.currentOffset
	hasher := crc32.New(castagnoli)
	var scratch [4]byte

	byteOrder.PutUint32(scratch[:], dataLength)
	err := s.writeData(scratch[:], "data length")
	if err != nil {
		return nil, err
	}
	_, _ = hasher.Write(scratch[:])

	err = s.writeData(data, "data")
	if err != nil {
		return nil, err
	}
	_, _ = hasher.Write(data)

	crc32ByteOrder.PutUint32(scratch[:], hasher.Sum32())
	err = s.writeData(scratch[:], "checksum")
	if err != nil {
		return nil, err
	}

	// Sync so that the record is durable before any index entry
	// referencing it is committed.
	err = cursor.currentFile.file.Sync()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sync file %d in store '%s'",
			cursor.currentFileNumber, s.storeName)
	}

	location := &flatFileLocation{
		fileNumber: cursor.currentFileNumber,
		fileOffset: originalOffset,
		dataLength: fullLength,
	}
	return location, nil
}

// openWriteFile opens the cursor's current file for reading and writing,
// creating it if needed. The cursor and its current file MUST be locked.
func (s *flatFileStore) openWriteFile(cursor *writeCursor) error {
	filePath := flatFilePath(s.basePath, s.storeName, cursor.currentFileNumber)
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %q", filePath)
	}
	cursor.currentFile.file = file

	// The read-only handle of this file, if any, is no longer needed.
	s.openFiles.Remove(cursor.currentFileNumber)
	return nil
}

// writeData is a helper for write which writes the provided data at the
// current write offset and updates the write cursor accordingly. The field
// name parameter is only used when there is an error to provide a nicer error
// message.
//
// The write cursor will be advanced the number of bytes actually written in
// the event of failure.
//
// NOTE: This function MUST be called with the write cursor current file lock
// held and must only be called during a write transaction so it is effectively
// locked for writes. Also, the write cursor current file must NOT be nil.
func (s *flatFileStore) writeData(data []byte, fieldName string) error {
	cursor := s.writeCursor
	n, err := cursor.currentFile.file.WriteAt(data, int64(cursor.currentOffset))
	cursor.currentOffset += uint32(n)
	if err != nil {
		var pathErr *os.PathError
		if ok := errors.As(err, &pathErr); ok && pathErr.Err == syscall.ENOSPC {
			log.Errorf("No space left on the hard disk while writing to store '%s'",
				s.storeName)
		}
		return errors.Wrapf(err, "failed to write %s in store %s to file %d "+
			"at offset %d", fieldName, s.storeName, cursor.currentFileNumber,
			cursor.currentOffset-uint32(n))
	}

	return nil
}
