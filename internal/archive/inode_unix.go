//go:build unix

package archive

import (
	"io/fs"
	"syscall"
)

// linkedFile returns the identity of a regular file that has more than one name.
func linkedFile(info fs.FileInfo) (fileID, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || !info.Mode().IsRegular() || stat.Nlink < 2 {
		return fileID{}, false
	}

	return fileID{dev: uint64(stat.Dev), ino: stat.Ino}, true //nolint:unconvert // Dev is int32 on darwin.
}
