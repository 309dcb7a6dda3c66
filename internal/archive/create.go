package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// CreateFile writes a tar.xz of the tree below root to the file at dest.
func CreateFile(ctx context.Context, root, dest string) error {
	out, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	if err = Create(ctx, root, out); err != nil {
		_ = out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

// Create writes a tar.xz stream of every entry below root. Member names are
// relative to root and use forward slashes; root itself is not a member.
func Create(ctx context.Context, root string, w io.Writer) error {
	compressor, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}

	writer := tar.NewWriter(compressor)
	seen := make(map[fileID]string)

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}

		if rel == "." {
			return nil
		}

		return addMember(writer, seen, path, filepath.ToSlash(rel), entry)
	})
	if walkErr != nil {
		_ = writer.Close()
		_ = compressor.Close()

		return fmt.Errorf("archive %s: %w", root, walkErr)
	}

	if err = writer.Close(); err != nil {
		_ = compressor.Close()

		return fmt.Errorf("close tar stream: %w", err)
	}

	if err = compressor.Close(); err != nil {
		return fmt.Errorf("close xz stream: %w", err)
	}

	return nil
}

// fileID identifies a file across its hard links.
type fileID struct {
	dev uint64
	ino uint64
}

// addMember writes one header and, for regular files, its contents. A file
// already written under another name becomes a hard link to that member.
func addMember(writer *tar.Writer, seen map[fileID]string, path, name string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	var linkTarget string
	if info.Mode()&fs.ModeSymlink != 0 {
		if linkTarget, err = os.Readlink(path); err != nil {
			return fmt.Errorf("read symlink %s: %w", path, err)
		}
	}

	header, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", path, err)
	}

	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}

	// Owner names differ between build hosts; keep only numeric ids.
	header.Uname = ""
	header.Gname = ""

	id, linked := linkedFile(info)
	if linked {
		if first, ok := seen[id]; ok {
			header.Typeflag = tar.TypeLink
			header.Linkname = first
			header.Size = 0

			if err = writer.WriteHeader(header); err != nil {
				return fmt.Errorf("write tar header for %s: %w", path, err)
			}

			return nil
		}

		seen[id] = name
	}

	if err = writer.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar header for %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	if _, err = io.Copy(writer, file); err != nil {
		return fmt.Errorf("write %s to tar: %w", path, err)
	}

	return nil
}
