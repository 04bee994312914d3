package gateways

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/ochairo/distcheck/internal/domain/interfaces"
)

// maxEntrySize caps a single extracted file to guard against decompression bombs
const maxEntrySize = 1 << 30

// ArchiveFormat identifies a supported archive container
type ArchiveFormat string

// Supported archive formats
const (
	ArchiveTar    ArchiveFormat = "tar"
	ArchiveTarGz  ArchiveFormat = "tar.gz"
	ArchiveTarZst ArchiveFormat = "tar.zst"
	ArchiveZip    ArchiveFormat = "zip"
)

var archiveSuffixes = []struct {
	suffix string
	format ArchiveFormat
}{
	{".tar.gz", ArchiveTarGz},
	{".tgz", ArchiveTarGz},
	{".tar.zst", ArchiveTarZst},
	{".tzst", ArchiveTarZst},
	{".tar", ArchiveTar},
	{".zip", ArchiveZip},
}

// DetectArchiveFormat identifies the archive format from the file name
func DetectArchiveFormat(path string) (ArchiveFormat, bool) {
	name := strings.ToLower(filepath.Base(path))
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.format, true
		}
	}
	return "", false
}

// TrimArchiveSuffix strips a recognized archive extension from a file name
func TrimArchiveSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return name[:len(name)-len(s.suffix)]
		}
	}
	return name
}

// ArchiveExtractor unpacks distribution archives
type ArchiveExtractor struct {
	logger interfaces.Logger
}

// NewArchiveExtractor creates a new archive extractor
func NewArchiveExtractor(logger interfaces.Logger) *ArchiveExtractor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArchiveExtractor{logger: logger}
}

// Extract unpacks archivePath into destDir
func (e *ArchiveExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	format, ok := DetectArchiveFormat(archivePath)
	if !ok {
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if format == ArchiveZip {
		return e.extractZip(ctx, archivePath, destDir)
	}

	//nolint:gosec // G304: archivePath is the artifact under test
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	var r io.Reader = file
	switch format {
	case ArchiveTarGz:
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		//nolint:errcheck // Defer close on gzip reader
		defer gzr.Close()
		r = gzr
	case ArchiveTarZst:
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	return e.extractTar(ctx, r, destDir)
}

// extractTar writes files and directories first and creates symlinks in a second
// pass, so no entry is ever written through a link. Links must point inside destDir
// and no entry may sit below a link.
func (e *ArchiveExtractor) extractTar(ctx context.Context, r io.Reader, destDir string) error {
	tr := tar.NewReader(r)

	type symlinkInfo struct {
		target   string
		linkname string
	}
	var symlinks []symlinkInfo
	linkNames := make(map[string]bool)
	var entries []string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(destDir, target)
		if err != nil {
			return fmt.Errorf("invalid file path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			entries = append(entries, rel)
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			entries = append(entries, rel)
			//nolint:gosec // G115: tar header mode fits in FileMode
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := checkLinkTarget(destDir, rel, header.Linkname); err != nil {
				return err
			}
			if linkNames[rel] {
				return fmt.Errorf("archive entry %s appears twice as a symlink", header.Name)
			}
			linkNames[rel] = true
			symlinks = append(symlinks, symlinkInfo{target: target, linkname: header.Linkname})

		default:
			e.logger.Warn("ignoring unsupported archive entry",
				interfaces.F("type", string(header.Typeflag)),
				interfaces.F("name", header.Name))
		}
	}

	for _, rel := range entries {
		if linkNames[rel] {
			return fmt.Errorf("archive entry %s is both a symlink and a file or directory", filepath.ToSlash(rel))
		}
	}
	for _, link := range symlinks {
		rel, _ := filepath.Rel(destDir, link.target)
		entries = append(entries, rel)
	}
	for _, rel := range entries {
		if parent := linkedAncestor(rel, linkNames); parent != "" {
			return fmt.Errorf("archive entry %s lies below symlink %s",
				filepath.ToSlash(rel), filepath.ToSlash(parent))
		}
	}

	var created []string
	for _, link := range symlinks {
		if err := os.MkdirAll(filepath.Dir(link.target), 0750); err != nil {
			return fmt.Errorf("failed to create directory for symlink: %w", err)
		}
		if err := os.Symlink(link.linkname, link.target); err != nil {
			e.logger.Warn("failed to create symlink",
				interfaces.F("link", link.target),
				interfaces.F("target", link.linkname),
				interfaces.F("error", err))
			continue
		}
		created = append(created, link.target)
	}

	return verifyLinksContained(destDir, created)
}

// checkLinkTarget rejects absolute link targets and targets that leave destDir
func checkLinkTarget(destDir, rel, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") || filepath.VolumeName(linkname) != "" {
		return fmt.Errorf("symlink %s has an absolute or empty target %q", filepath.ToSlash(rel), linkname)
	}
	if _, err := safeJoin(destDir, filepath.Join(filepath.Dir(rel), linkname)); err != nil {
		return fmt.Errorf("symlink %s points outside the archive: %q", filepath.ToSlash(rel), linkname)
	}
	return nil
}

// linkedAncestor returns the closest parent of rel that is a symlink entry
func linkedAncestor(rel string, linkNames map[string]bool) string {
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if linkNames[dir] {
			return dir
		}
	}
	return ""
}

// verifyLinksContained resolves every created link and fails when a chain of links
// leaves destDir. Dangling links are left for the symlink check to report.
func verifyLinksContained(destDir string, links []string) error {
	if len(links) == 0 {
		return nil
	}
	root, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	for _, link := range links {
		resolved, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("symlink %s resolves outside the archive", filepath.Base(link))
		}
	}
	return nil
}

func (e *ArchiveExtractor) extractZip(ctx context.Context, archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
		}
		mode := f.Mode().Perm()
		if mode == 0 {
			mode = 0640
		}
		err = writeFile(target, rc, mode)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	//nolint:gosec // G304: target is validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(r, maxEntrySize+1))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if n > maxEntrySize {
		_ = out.Close()
		return fmt.Errorf("archive entry %s exceeds %d bytes", filepath.Base(target), int64(maxEntrySize))
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// safeJoin resolves an archive entry name inside destDir, rejecting traversal
func safeJoin(destDir, name string) (string, error) {
	//nolint:gosec // G305: traversal is rejected below
	target := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}
