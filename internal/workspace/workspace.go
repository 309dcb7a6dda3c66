package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/umu-scout/internal/logger"
)

const (
	// dirMode is used for the workspace and scratch directories.
	dirMode os.FileMode = 0o755
	// markerMode is used for the marker file.
	markerMode os.FileMode = 0o600
)

// ErrBusy is returned when another live process holds the workspace.
var ErrBusy = errors.New("workspace is in use by another process")

// Workspace is an output directory claimed by the current process.
type Workspace struct {
	// root is the absolute path of the output directory.
	root string
	// marker is the path of the file recording the owner PID.
	marker string
	// scratch holds downloads; it lives outside root so it never ends up in an archive.
	scratch string
}

// MarkerPath returns the marker location for an output directory.
func MarkerPath(root string) string {
	return filepath.Join(filepath.Dir(root), "."+filepath.Base(root)+".lock")
}

// Acquire claims dir for the calling process and resets it to an empty directory.
// Any pre-existing contents are destroyed.
func Acquire(ctx context.Context, dir string) (*Workspace, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(root), dirMode); err != nil {
		return nil, fmt.Errorf("create workspace parent: %w", err)
	}

	ws := &Workspace{
		root:   root,
		marker: MarkerPath(root),
	}

	if err = ws.claim(ctx); err != nil {
		return nil, err
	}

	if err = ws.reset(); err != nil {
		ws.Release(ctx)

		return nil, err
	}

	logger.DebugKV(ctx, "Workspace acquired", "path", root)

	return ws, nil
}

// Root returns the absolute path of the output directory.
func (w *Workspace) Root() string {
	return w.root
}

// Path joins elements onto the output directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// Scratch returns the directory for temporary downloads.
func (w *Workspace) Scratch() string {
	return w.scratch
}

// Release removes the scratch directory and the marker. It is safe to call more than once.
func (w *Workspace) Release(ctx context.Context) {
	if w == nil {
		return
	}

	if w.scratch != "" {
		if err := os.RemoveAll(w.scratch); err != nil {
			logger.WarnKV(ctx, "Unable to remove scratch directory", "path", w.scratch, "error", err)
		}

		w.scratch = ""
	}

	if err := os.Remove(w.marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove workspace marker", "path", w.marker, "error", err)
	}
}

// claim creates the marker, clearing a stale one left by a process that no longer runs.
func (w *Workspace) claim(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(w.marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerMode)
		if err == nil {
			_, writeErr := file.WriteString(strconv.Itoa(os.Getpid()))
			closeErr := file.Close()

			if err = errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(w.marker)

				return fmt.Errorf("write workspace marker: %w", err)
			}

			return nil
		}

		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create workspace marker: %w", err)
		}

		if IsHeld(ctx, w.marker) {
			return fmt.Errorf("%s: %w", w.root, ErrBusy)
		}

		logger.Info(ctx, "The workspace marker is stale, removing it")

		if err = os.Remove(w.marker); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale marker: %w", err)
		}
	}

	return fmt.Errorf("%s: %w", w.root, ErrBusy)
}

// reset recreates the output directory empty and prepares the scratch directory.
func (w *Workspace) reset() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("clean workspace: %w", err)
	}

	if err := os.MkdirAll(w.root, dirMode); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	scratch, err := os.MkdirTemp("", "umu-scout-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	w.scratch = scratch

	return nil
}

// IsHeld reports whether the marker names a process that is still running.
// Unreadable or malformed markers are treated as stale.
func IsHeld(ctx context.Context, marker string) bool {
	contents, err := os.ReadFile(filepath.Clean(marker))
	if err != nil {
		logger.Infof(ctx, "Unable to read workspace marker: %v", err)

		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return false
	}

	if pid == os.Getpid() {
		return true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.Warnf(ctx, "Unable to inspect process %d: %v", pid, err)

		return true
	}

	return process != nil
}
