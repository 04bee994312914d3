package gateways

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/ochairo/distcheck/internal/domain/interfaces"
)

// Packager bundles a report directory into a tar.gz archive for CI upload
type Packager struct {
	logger interfaces.Logger
}

// NewPackager creates a new packager
func NewPackager(logger interfaces.Logger) *Packager {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Packager{logger: logger}
}

// BundleDirectory writes sourceDir to tarballPath. Entries are stored under the
// directory's base name; files created while bundling may be missed.
func (p *Packager) BundleDirectory(ctx context.Context, sourceDir, tarballPath string) error {
	if err := os.MkdirAll(filepath.Dir(tarballPath), 0750); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}

	tmpPath := tarballPath + ".tmp"
	//nolint:gosec // G304: tarballPath is derived from the configured output directory
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}

	if err := p.writeTarball(ctx, file, sourceDir); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close bundle file: %w", err)
	}

	if err := os.Rename(tmpPath, tarballPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return nil
}

func (p *Packager) writeTarball(ctx context.Context, w io.Writer, sourceDir string) error {
	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)
	prefix := filepath.Base(filepath.Clean(sourceDir))

	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				p.logger.Warn("skipping unreadable symlink",
					interfaces.F("path", path),
					interfaces.F("error", err))
				return nil
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}

		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		header.Name = filepath.ToSlash(filepath.Join(prefix, relPath))
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		return copyIntoTar(tarWriter, path)
	})
	if err != nil {
		return fmt.Errorf("failed to bundle %s: %w", sourceDir, err)
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

func copyIntoTar(tw *tar.Writer, path string) error {
	//nolint:gosec // G304: File path from filepath.Walk for bundling
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to write file to tar: %w", err)
	}
	return nil
}
