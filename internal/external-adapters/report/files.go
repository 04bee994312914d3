package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// Output file names inside the report directory
const (
	JSONFileName    = "report.json"
	TextFileName    = "report.txt"
	MetricsFileName = "metrics.prom"
	LogsDirName     = entities.LogsDir
)

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	//nolint:gosec // G302: reports are meant to be readable by CI tooling
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeCheckLogs persists captured output at the log path each result already names
func writeCheckLogs(dir string, results []entities.CheckResult) error {
	var firstErr error
	for _, r := range results {
		if r.Output == "" || r.LogPath == "" {
			continue
		}
		if err := writeFileAtomic(filepath.Join(dir, filepath.FromSlash(r.LogPath)), []byte(r.Output)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("check %s: %w", r.ID, err)
		}
	}
	return firstErr
}

func writeJSON(dir string, report *entities.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, JSONFileName), append(data, '\n'))
}

func writeText(dir string, report *entities.RunReport) error {
	return writeFileAtomic(filepath.Join(dir, TextFileName), []byte(RenderText(report)))
}
