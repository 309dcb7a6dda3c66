//go:build !unix

package archive

import "io/fs"

// linkedFile never reports hard links where inodes are not exposed.
func linkedFile(fs.FileInfo) (fileID, bool) {
	return fileID{}, false
}
