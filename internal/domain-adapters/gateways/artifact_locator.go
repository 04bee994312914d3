package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// ExtractionMarker records the checksum of the archive last unpacked into a
// caller-owned extraction directory
const ExtractionMarker = ".distcheck-extracted"

// extractedRootDir is the subdirectory of an extraction directory holding the contents
const extractedRootDir = "root"

// ArtifactLocator resolves artifact paths, extracting archives when needed
type ArtifactLocator struct {
	extractor *ArchiveExtractor
	logger    interfaces.Logger
}

// NewArtifactLocator creates a new artifact locator
func NewArtifactLocator(logger interfaces.Logger) *ArtifactLocator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArtifactLocator{
		extractor: NewArchiveExtractor(logger),
		logger:    logger,
	}
}

var _ gateways.ArtifactLocator = (*ArtifactLocator)(nil)

// Locate resolves path to an artifact root. Directories are used in place;
// archives are extracted into a fresh temporary directory or into opts.ExtractTo.
func (l *ArtifactLocator) Locate(ctx context.Context, path string, opts gateways.LocateOptions) (*entities.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", entities.ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", entities.ErrArtifactUnreadable, path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entities.ErrArtifactUnreadable, path, err)
	}

	if info.IsDir() {
		if _, err := os.ReadDir(abs); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", entities.ErrArtifactUnreadable, path, err)
		}
		return &entities.Artifact{
			Name: filepath.Base(abs),
			Root: abs,
		}, nil
	}

	if _, ok := DetectArchiveFormat(abs); !ok {
		return nil, fmt.Errorf("%w: %s is neither a directory nor a supported archive", entities.ErrArtifactUnreadable, path)
	}

	//nolint:gosec // G304: path is the artifact under test
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entities.ErrArtifactUnreadable, path, err)
	}
	_ = f.Close()

	artifact := &entities.Artifact{
		Name:   TrimArchiveSuffix(filepath.Base(abs)),
		Origin: abs,
	}

	if opts.ExtractTo != "" {
		root, err := l.extractInto(ctx, abs, opts.ExtractTo)
		if err != nil {
			return nil, err
		}
		artifact.Root = root
		return artifact, nil
	}

	tempDir, err := os.MkdirTemp("", "distcheck-")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temporary directory: %v", entities.ErrExtractionFailed, err)
	}
	artifact.TempDir = tempDir

	contents := filepath.Join(tempDir, extractedRootDir)
	if err := l.extractor.Extract(ctx, abs, contents); err != nil {
		_ = artifact.Close()
		return nil, fmt.Errorf("%w: %v", entities.ErrExtractionFailed, err)
	}

	root, err := packageRoot(contents)
	if err != nil {
		_ = artifact.Close()
		return nil, err
	}
	artifact.Root = root

	l.logger.Debug("extracted artifact",
		interfaces.F("archive", abs),
		interfaces.F("root", root))

	return artifact, nil
}

// extractInto unpacks the archive into a caller-owned directory, skipping the
// work when the marker shows the same archive was already extracted there
func (l *ArtifactLocator) extractInto(ctx context.Context, archive, dir string) (string, error) {
	sum, err := fileSHA256(archive)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", entities.ErrArtifactUnreadable, archive, err)
	}

	contents := filepath.Join(dir, extractedRootDir)
	markerPath := filepath.Join(dir, ExtractionMarker)

	//nolint:gosec // G304: marker lives in the caller's extraction directory
	if marker, err := os.ReadFile(markerPath); err == nil && strings.TrimSpace(string(marker)) == sum {
		if _, err := os.Stat(contents); err == nil {
			l.logger.Info("reusing previous extraction", interfaces.F("dir", dir))
			return packageRoot(contents)
		}
	}

	if err := os.RemoveAll(contents); err != nil {
		return "", fmt.Errorf("%w: failed to clear %s: %v", entities.ErrExtractionFailed, contents, err)
	}
	_ = os.Remove(markerPath)

	if err := l.extractor.Extract(ctx, archive, contents); err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrExtractionFailed, err)
	}

	if err := os.WriteFile(markerPath, []byte(sum+"\n"), 0600); err != nil {
		return "", fmt.Errorf("%w: failed to write extraction marker: %v", entities.ErrExtractionFailed, err)
	}

	return packageRoot(contents)
}

// packageRoot descends into a lone top-level directory, the usual archive layout
func packageRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrExtractionFailed, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func fileSHA256(path string) (string, error) {
	//nolint:gosec // G304: path is the artifact under test
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
