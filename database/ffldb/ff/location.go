package ff

import (
	"fmt"

	"github.com/pkg/errors"
)

// flatFileLocationSerializedSize is the size in bytes of a serialized flat
// file location: file number, file offset and data length, 4 bytes each.
const flatFileLocationSerializedSize = 12

// flatFileLocation identifies a record inside a flat file store. dataLength
// covers the whole record, length prefix and checksum included.
type flatFileLocation struct {
	fileNumber uint32
	fileOffset uint32
	dataLength uint32
}

func (l *flatFileLocation) String() string {
	return fmt.Sprintf("%d:%d+%d", l.fileNumber, l.fileOffset, l.dataLength)
}

func serializeLocation(location *flatFileLocation) []byte {
	serializedLocation := make([]byte, flatFileLocationSerializedSize)
	byteOrder.PutUint32(serializedLocation[0:4], location.fileNumber)
	byteOrder.PutUint32(serializedLocation[4:8], location.fileOffset)
	byteOrder.PutUint32(serializedLocation[8:12], location.dataLength)
	return serializedLocation
}

func deserializeLocation(serializedLocation []byte) (*flatFileLocation, error) {
	if len(serializedLocation) != flatFileLocationSerializedSize {
		return nil, errors.Errorf("unexpected serializedLocation length: %d",
			len(serializedLocation))
	}
	location := &flatFileLocation{
		fileNumber: byteOrder.Uint32(serializedLocation[0:4]),
		fileOffset: byteOrder.Uint32(serializedLocation[4:8]),
		dataLength: byteOrder.Uint32(serializedLocation[8:12]),
	}
	return location, nil
}
