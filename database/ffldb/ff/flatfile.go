package ff

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const (
	// maxOpenFiles is the max number of read-only files kept open in each
	// store. The file currently being written to is not counted.
	maxOpenFiles = 25

	// maxFileSize is the maximum size for each file used to store data.
	// Offsets are uint32, so this must stay below 4 GiB.
	maxFileSize uint32 = 128 * 1024 * 1024 // 128 MiB
)

var (
	// byteOrder is the byte order of the data length prefix and of
	// serialized locations.
	byteOrder = binary.LittleEndian

	// crc32ByteOrder is the byte order used for CRC-32 checksums.
	crc32ByteOrder = binary.BigEndian

	// crc32ChecksumLength is the length in bytes of a CRC-32 checksum.
	crc32ChecksumLength = 4

	// dataLengthLength is the length in bytes of the "data length" section
	// of a serialized entry in a flat file store.
	dataLengthLength = 4

	// castagnoli houses the Catagnoli polynomial used for CRC-32 checksums.
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

// flatFileStore appends records to a numbered sequence of flat files and
// serves concurrent reads from them.
//
// Locking order, when more than one lock is needed:
//   1) openFilesMutex
//   2) writeCursor mutex
//   3) specific file mutexes
type flatFileStore struct {
	basePath  string
	storeName string

	// openFilesMutex serializes opening and evicting read-only handles.
	// Readers take it for reading only while acquiring a file's read lock,
	// so an evicted file is never closed out from under a reader.
	openFilesMutex sync.RWMutex
	openFiles      *lru.Cache[uint32, *lockableFile]

	writeCursor *writeCursor

	isClosed bool
}

// writeCursor represents the current file and offset of the flat file on disk
// for performing all writes.
type writeCursor struct {
	sync.RWMutex

	// currentFile is the file new records are appended to. Its handle is
	// opened lazily on the first write.
	currentFile *lockableFile

	currentFileNumber uint32
	currentOffset     uint32
}

// openFlatFileStore returns a new flat file store with the current file number
// and offset set and all fields initialized.
func openFlatFileStore(basePath string, storeName string) (*flatFileStore, error) {
	fileNumber, fileOffset, err := findCurrentLocation(basePath, storeName)
	if err != nil {
		return nil, err
	}

	openFiles, err := lru.NewWithEvict[uint32, *lockableFile](maxOpenFiles, closeEvictedFile)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	store := &flatFileStore{
		basePath:  basePath,
		storeName: storeName,
		openFiles: openFiles,
		writeCursor: &writeCursor{
			currentFile:       &lockableFile{},
			currentFileNumber: fileNumber,
			currentOffset:     fileOffset,
		},
		isClosed: false,
	}
	return store, nil
}

// closeEvictedFile closes a read-only handle once it falls out of the open
// files cache. It waits for readers still holding the file's read lock.
func closeEvictedFile(fileNumber uint32, file *lockableFile) {
	file.Lock()
	defer file.Unlock()
	err := file.Close()
	if err != nil {
		log.Warnf("Failed to close flat file #%d: %s", fileNumber, err)
	}
}

func (s *flatFileStore) Close() error {
	if s.isClosed {
		return errors.Errorf("cannot close a closed store %s",
			s.storeName)
	}
	s.isClosed = true

	// Lock the write cursor to let any ongoing write finish.
	s.writeCursor.Lock()
	defer s.writeCursor.Unlock()
	err := s.writeCursor.currentFile.Close()
	if err != nil {
		return err
	}

	s.openFilesMutex.Lock()
	defer s.openFilesMutex.Unlock()
	s.openFiles.Purge()
	return nil
}

func (s *flatFileStore) currentLocation() *flatFileLocation {
	s.writeCursor.RLock()
	defer s.writeCursor.RUnlock()

	return &flatFileLocation{
		fileNumber: s.writeCursor.currentFileNumber,
		fileOffset: s.writeCursor.currentOffset,
		dataLength: 0,
	}
}

// findCurrentLocation scans the database directory for the flat files of the
// given store and returns the end of the most recent one. That position is
// where the next record will be written.
func findCurrentLocation(dbPath string, storeName string) (fileNumber uint32, fileLength uint32, err error) {
	currentFileNumber := uint32(0)
	currentFileLength := uint32(0)
	for {
		currentFilePath := flatFilePath(dbPath, storeName, currentFileNumber)
		stat, err := os.Stat(currentFilePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return 0, 0, errors.WithStack(err)
			}
			if currentFileNumber > 0 {
				fileNumber = currentFileNumber - 1
			}
			fileLength = currentFileLength
			break
		}
		currentFileLength = uint32(stat.Size())
		currentFileNumber++
	}

	log.Tracef("Scan for store '%s' found latest file #%d with length %d",
		storeName, fileNumber, fileLength)
	return fileNumber, fileLength, nil
}

// flatFilePath return the file path for the provided store's flat file number.
func flatFilePath(dbPath string, storeName string, fileNumber uint32) string {
	// 9 digits allow 10^9 files of 128MiB each.
	fileName := fmt.Sprintf("%s-%09d.fdb", storeName, fileNumber)
	return filepath.Join(dbPath, fileName)
}
