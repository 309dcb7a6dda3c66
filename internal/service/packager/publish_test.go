package packager

import (
	"crypto/sha512"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileChecksum matches crypto/sha512.
func TestFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("umu"), 0o600))

	sum, err := FileChecksum(path)
	require.NoError(t, err)

	want := sha512.Sum512([]byte("umu"))
	require.Equal(t, want[:], sum)

	_, err = FileChecksum(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

// TestInstall replaces the target only when the checksum matches.
func TestInstall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	staged := filepath.Join(dir, "staged")
	target := filepath.Join(dir, "out", "umu-scout.tar.xz")

	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(staged, []byte("archive"), 0o600))

	sum, err := FileChecksum(staged)
	require.NoError(t, err)

	require.Error(t, install(staged, target, []byte("wrong")))

	require.NoError(t, install(staged, target, sum))

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "archive", string(contents))
	require.NoFileExists(t, filepath.Join(filepath.Dir(target), ".umu-scout.tar.xz.old"))
}
