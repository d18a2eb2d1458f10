package ffldb

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// minFreeDiskSpace is the amount of free space kept in reserve on the
// volume holding the database.
const minFreeDiskSpace = 15 * 1000 * 1000

// freeDiskSpace returns the number of bytes available to the caller on the
// volume holding path.
func freeDiskSpace(path string) (uint64, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	var freeBytesAvailable uint64
	err = windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, nil, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to query the volume of %s", path)
	}
	return freeBytesAvailable, nil
}
