package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/umu-scout/internal/archive"
	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/logger"
	"github.com/oshokin/umu-scout/internal/workspace"
)

var (
	// errMergeDirMissing is returned when no archive produced the merge directory.
	errMergeDirMissing = errors.New("merge directory was not produced by any archive")
	// errPackageDirExists is returned when an archive already produced the package directory.
	errPackageDirExists = errors.New("package directory already exists")
	// errBadAuxiliaryName is returned when an auxiliary URL does not end in a file name.
	errBadAuxiliaryName = errors.New("auxiliary url has no usable file name")
)

// assemble downloads and extracts every component, fetches auxiliary files
// and renames the merge directory to the package name.
func (p *packager) assemble(ctx context.Context, ws *workspace.Workspace) error {
	for _, component := range p.cfg.Components {
		if err := p.assembleComponent(ctx, ws, component); err != nil {
			return fmt.Errorf("%s: %w", component.Name, err)
		}
	}

	return p.merge(ctx, ws)
}

// assembleComponent installs one component into its subdirectory of the workspace.
func (p *packager) assembleComponent(ctx context.Context, ws *workspace.Workspace, component config.Component) error {
	dest := ws.Root()
	if component.Subdir != "" {
		dest = ws.Path(filepath.FromSlash(component.Subdir))
	}

	if err := archive.Contained(ws.Root(), dest); err != nil {
		return err
	}

	download := filepath.Join(ws.Scratch(), component.Name+"-"+config.AuxiliaryFilename(component.ArchiveURL))

	logger.InfoKV(ctx, "Downloading archive", "component", component.Name, "url", component.ArchiveURL)

	size, err := p.client.Download(ctx, component.ArchiveURL, download)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Extracting archive", "component", component.Name, "bytes", size, "destination", dest)

	if err = archive.ExtractFile(ctx, download, dest); err != nil {
		return err
	}

	if err = os.Remove(download); err != nil {
		logger.WarnKV(ctx, "Unable to remove downloaded archive", "path", download, "error", err)
	}

	for _, rawURL := range component.Auxiliary {
		if err = p.fetchAuxiliary(ctx, ws, dest, rawURL); err != nil {
			return err
		}
	}

	return nil
}

// fetchAuxiliary downloads a single file next to the extracted component.
// An archive member with the same name is replaced, links included.
func (p *packager) fetchAuxiliary(ctx context.Context, ws *workspace.Workspace, dest, rawURL string) error {
	name := config.AuxiliaryFilename(rawURL)
	if !filepath.IsLocal(name) || name == "." {
		return fmt.Errorf("%s: %w", rawURL, errBadAuxiliaryName)
	}

	if err := archive.Contained(ws.Root(), dest); err != nil {
		return err
	}

	target := filepath.Join(dest, name)
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", target, err)
	}

	logger.InfoKV(ctx, "Downloading auxiliary file", "url", rawURL, "path", target)

	if _, err := p.client.Download(ctx, rawURL, target); err != nil {
		return err
	}

	return nil
}

// merge renames the merge directory to the package name.
func (p *packager) merge(ctx context.Context, ws *workspace.Workspace) error {
	if p.cfg.MergeDir == p.cfg.PackageName {
		return nil
	}

	src := ws.Path(p.cfg.MergeDir)
	dst := ws.Path(p.cfg.PackageName)

	info, err := os.Lstat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", p.cfg.MergeDir, errMergeDirMissing)
	}

	if _, err = os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", p.cfg.PackageName, errPackageDirExists)
	}

	if err = os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename merge directory: %w", err)
	}

	logger.DebugKV(ctx, "Merged component tree", "from", src, "to", dst)

	return nil
}
