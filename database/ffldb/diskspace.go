//go:build !windows
// +build !windows

package ffldb

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// minFreeDiskSpace is the amount of free space kept in reserve on the
// volume holding the database.
const minFreeDiskSpace = 15 * 1000 * 1000

// freeDiskSpace returns the number of bytes available to unprivileged users
// on the volume holding path.
func freeDiskSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	err := unix.Statfs(path, &stat)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to stat the volume of %s", path)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
