package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/oshokin/umu-scout/internal/logger"
)

const (
	// dirMode is used for every directory created during extraction.
	dirMode os.FileMode = 0o755
	// permMask keeps permission bits of archive members and drops setuid/setgid/sticky.
	permMask = 0o777
)

var (
	// ErrPathEscapes is returned for members whose resolved path leaves the destination.
	ErrPathEscapes = errors.New("path escapes destination")

	//nolint:gochecknoglobals // Magic numbers are constant byte sequences.
	xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	//nolint:gochecknoglobals // Magic numbers are constant byte sequences.
	gzipMagic = []byte{0x1F, 0x8B}
)

// symlink is created after every regular member so that no write goes through it.
type symlink struct {
	path   string
	target string
}

// ExtractFile extracts the archive stored at path into dest.
func ExtractFile(ctx context.Context, path, dest string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	return Extract(ctx, f, dest)
}

// Extract decompresses r and unpacks every member into dest, creating dest if needed.
func Extract(ctx context.Context, r io.Reader, dest string) error {
	stream, err := decompress(r)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	if err = os.MkdirAll(root, dirMode); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	var (
		reader  = tar.NewReader(stream)
		links   []symlink
		members int
	)

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		header, nextErr := reader.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return fmt.Errorf("read tar: %w", nextErr)
		}

		target, err := resolve(root, header.Name)
		if err != nil {
			return err
		}

		if err = checkParents(root, realRoot, target); err != nil {
			return err
		}

		members++

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, dirMode); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck // Old archives still use TypeRegA.
			if err = writeFile(target, reader, os.FileMode(header.Mode)&permMask); err != nil { //nolint:gosec // Mode is masked.
				return err
			}
		case tar.TypeLink:
			if err = hardlink(root, realRoot, target, header.Linkname); err != nil {
				return err
			}
		case tar.TypeSymlink:
			links = append(links, symlink{path: target, target: header.Linkname})
		case tar.TypeXGlobalHeader:
			members--
		default:
			logger.WarnKV(ctx, "Skipping unsupported archive member",
				"name", header.Name, "type", string(header.Typeflag))
		}
	}

	for _, link := range links {
		if err = checkParents(root, realRoot, link.path); err != nil {
			return err
		}

		if err = os.MkdirAll(filepath.Dir(link.path), dirMode); err != nil {
			return fmt.Errorf("create directory for symlink: %w", err)
		}

		_ = os.Remove(link.path)

		if err = os.Symlink(link.target, link.path); err != nil {
			return fmt.Errorf("create symlink %s: %w", link.path, err)
		}
	}

	logger.DebugKV(ctx, "Extracted archive", "destination", root, "members", members)

	return nil
}

// decompress sniffs the stream and wraps it in the matching decoder.
func decompress(r io.Reader) (io.Reader, error) {
	buffered := bufio.NewReader(r)

	head, err := buffered.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read archive header: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, xzMagic):
		stream, err := xz.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}

		return stream, nil
	case bytes.HasPrefix(head, gzipMagic):
		stream, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}

		return stream, nil
	default:
		return buffered, nil
	}
}

// resolve joins name onto root and makes sure the result stays inside root.
func resolve(root, name string) (string, error) {
	cleaned := filepath.FromSlash(name)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%s: %w", name, ErrPathEscapes)
	}

	target := filepath.Join(root, cleaned)
	if !Within(root, target) {
		return "", fmt.Errorf("%s: %w", name, ErrPathEscapes)
	}

	return target, nil
}

// Within reports whether path equals root or lies below it. Both must be clean absolute paths.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel == "." || filepath.IsLocal(rel)
}

// Contained checks that path, or its deepest existing ancestor, resolves inside root.
func Contained(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if !Within(absRoot, absPath) {
		return fmt.Errorf("%s: %w", path, ErrPathEscapes)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	return checkFrom(absRoot, realRoot, absPath, path)
}

// checkParents makes sure the directory that will hold target resolves inside
// the destination. Links created by an earlier archive must not redirect later writes.
func checkParents(root, realRoot, target string) error {
	if target == root {
		return nil
	}

	return checkFrom(root, realRoot, filepath.Dir(target), target)
}

// checkFrom walks up from dir to its deepest existing ancestor and checks that
// the ancestor, with symlinks resolved, is inside realRoot.
func checkFrom(root, realRoot, dir, name string) error {
	for ; ; dir = filepath.Dir(dir) {
		if _, err := os.Lstat(dir); err != nil {
			if errors.Is(err, os.ErrNotExist) && dir != root {
				continue
			}

			return fmt.Errorf("inspect %s: %w", dir, err)
		}

		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil || !Within(realRoot, resolved) {
			return fmt.Errorf("%s: %w", name, ErrPathEscapes)
		}

		return nil
	}
}

// writeFile creates a regular file with the member contents.
func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	// A previous member or archive may have left a file or link here.
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", target, err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err = io.Copy(out, r); err != nil {
		_ = out.Close()

		return fmt.Errorf("write %s: %w", target, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}

	return nil
}

// hardlink links target to an already extracted member. The source must
// resolve inside the destination even through links left by earlier archives.
func hardlink(root, realRoot, target, linkname string) error {
	source, err := resolve(root, linkname)
	if err != nil {
		return err
	}

	if err = checkFrom(root, realRoot, filepath.Dir(source), linkname); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(source)
	if err != nil {
		return fmt.Errorf("hard link source %s: %w", linkname, err)
	}

	if !Within(realRoot, resolved) {
		return fmt.Errorf("%s: %w", linkname, ErrPathEscapes)
	}

	if err = os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	_ = os.Remove(target)

	if err = os.Link(source, target); err != nil {
		return fmt.Errorf("create hard link %s: %w", target, err)
	}

	return nil
}
