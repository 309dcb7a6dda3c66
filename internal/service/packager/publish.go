package packager

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/umu-scout/internal/archive"
	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/domain/versions"
	"github.com/oshokin/umu-scout/internal/logger"
	"github.com/oshokin/umu-scout/internal/repository/manifest"
	"github.com/oshokin/umu-scout/internal/workspace"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// ChecksumFunction hashes the published archive.
const ChecksumFunction crypto.Hash = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// Published lists the absolute paths of the files produced by a build.
type Published struct {
	// Archive is the package tarball.
	Archive string
	// Checksum is the sidecar, empty when the checksum stage is disabled.
	Checksum string
	// Manifest is the version record of the build.
	Manifest string
	// Digest is the hex encoded SHA-512 of Archive.
	Digest string
}

// Files returns the produced files in upload order.
func (p *Published) Files() []string {
	files := []string{p.Archive}
	if p.Checksum != "" {
		files = append(files, p.Checksum)
	}

	return append(files, p.Manifest)
}

// publish archives the workspace, installs the archive and writes the sidecar and manifest.
func (p *packager) publish(ctx context.Context, ws *workspace.Workspace, current *versions.Record) (*Published, error) {
	staged := filepath.Join(ws.Scratch(), p.cfg.ArchiveFilename())

	logger.InfoKV(ctx, "Creating archive", "root", ws.Root())

	if err := archive.CreateFile(ctx, ws.Root(), staged); err != nil {
		return nil, err
	}

	digest, err := FileChecksum(staged)
	if err != nil {
		return nil, err
	}

	published := &Published{
		Archive:  ws.Path(p.cfg.ArchiveFilename()),
		Manifest: ws.Path(p.cfg.ManifestFilename()),
		Digest:   hex.EncodeToString(digest),
	}

	if err = install(staged, published.Archive, digest); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Archive installed", "path", published.Archive, "sha512", published.Digest)

	if p.cfg.Checksum {
		published.Checksum = ws.Path(p.cfg.ChecksumFilename())

		line := published.Digest + " " + p.cfg.ArchiveFilename()
		if err = os.WriteFile(published.Checksum, []byte(line), config.DefaultFilePermissions); err != nil {
			return nil, fmt.Errorf("write checksum: %w", err)
		}
	}

	if err = manifest.NewFileRepository(published.Manifest).Save(ctx, current); err != nil {
		return nil, err
	}

	return published, nil
}

// install moves the staged archive to target after go-update verifies its checksum.
func install(staged, target string, digest []byte) error {
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		file, createErr := os.Create(filepath.Clean(target))
		if createErr != nil {
			return fmt.Errorf("create %s: %w", target, createErr)
		}

		_ = file.Close()
	}

	data, err := os.Open(filepath.Clean(staged))
	if err != nil {
		return fmt.Errorf("open staged archive: %w", err)
	}

	defer func() {
		_ = data.Close()
	}()

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: config.DefaultFilePermissions,
		Checksum:   digest,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(data, options); err != nil {
		return fmt.Errorf("install archive: %w", err)
	}

	oldFileName := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// FileChecksum streams the file at path through ChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
