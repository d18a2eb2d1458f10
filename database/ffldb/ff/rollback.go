package ff

import (
	"os"

	"github.com/pkg/errors"
)

// rollback moves the write cursor back to the given location, truncating
// the file the location points into and deleting every file after it.
// Rolling back to a location past the write cursor is an error: it means
// data that was referenced has been lost.
func (s *flatFileStore) rollback(targetLocation *flatFileLocation) error {
	if s.isClosed {
		return errors.Errorf("cannot rollback a closed store %s",
			s.storeName)
	}

	s.openFilesMutex.Lock()
	defer s.openFilesMutex.Unlock()

	cursor := s.writeCursor
	cursor.Lock()
	defer cursor.Unlock()

	targetFileNumber := targetLocation.fileNumber
	targetFileOffset := targetLocation.fileOffset + targetLocation.dataLength

	// Nothing to do if the cursor is already there.
	if cursor.currentFileNumber == targetFileNumber &&
		cursor.currentOffset == targetFileOffset {
		return nil
	}
	if targetFileNumber > cursor.currentFileNumber ||
		(targetFileNumber == cursor.currentFileNumber && targetFileOffset > cursor.currentOffset) {
		return errors.Errorf("cannot rollback store '%s' to %s: the write "+
			"cursor is at %d:%d", s.storeName, targetLocation,
			cursor.currentFileNumber, cursor.currentOffset)
	}

	log.Warnf("ROLLBACK: Rolling back store '%s' to file %d, offset %d",
		s.storeName, targetFileNumber, targetFileOffset)

	// Close the current write file if it needs to be deleted.
	if cursor.currentFileNumber > targetFileNumber {
		cursor.currentFile.Lock()
		err := cursor.currentFile.Close()
		cursor.currentFile.Unlock()
		if err != nil {
			return err
		}
	}

	// Delete all files newer than the file the target location is in.
	for cursor.currentFileNumber > targetFileNumber {
		err := s.deleteFile(cursor.currentFileNumber)
		if err != nil {
			return errors.Wrapf(err, "ROLLBACK: Failed to delete file "+
				"number %d in store '%s'", cursor.currentFileNumber,
				s.storeName)
		}
		cursor.currentFileNumber--
	}

	// Open the target file for writing if it isn't already, then
	// truncate and sync it.
	cursor.currentFile.Lock()
	defer cursor.currentFile.Unlock()
	if cursor.currentFile.file == nil {
		err := s.openWriteFile(cursor)
		if err != nil {
			return err
		}
	}
	err := cursor.currentFile.file.Truncate(int64(targetFileOffset))
	if err != nil {
		return errors.Wrapf(err, "ROLLBACK: Failed to truncate file %d "+
			"in store '%s'", cursor.currentFileNumber, s.storeName)
	}
	err = cursor.currentFile.file.Sync()
	if err != nil {
		return errors.Wrapf(err, "ROLLBACK: Failed to sync file %d in "+
			"store '%s'", cursor.currentFileNumber, s.storeName)
	}
	cursor.currentOffset = targetFileOffset
	return nil
}

// deleteFile removes the file for the passed flat file number, closing its
// read-only handle first. openFilesMutex MUST be held for writes.
func (s *flatFileStore) deleteFile(fileNumber uint32) error {
	s.openFiles.Remove(fileNumber)

	filePath := flatFilePath(s.basePath, s.storeName, fileNumber)
	err := os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}
