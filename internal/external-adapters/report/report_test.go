package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

func sampleReport() *entities.RunReport {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	results := []entities.CheckResult{
		{ID: "env.os-supported", Category: entities.CategoryEnvironment, Status: entities.StatusPass,
			Duration: 3 * time.Millisecond, Message: "linux is supported"},
		{ID: "build.main-executable", Category: entities.CategoryBuild, Status: entities.StatusPass,
			Duration: 1200 * time.Microsecond, Message: "bin/app is executable"},
		{ID: "build.machine-type.arm64", Category: entities.CategoryBuild, Status: entities.StatusSkipped,
			Message: entities.ReasonArchitecture},
		{ID: "functional.version", Category: entities.CategoryFunctional, Status: entities.StatusFail,
			Duration: 120 * time.Millisecond, Message: "version output does not contain 1.2.0",
			LogPath: "logs/functional.version.log", Output: "app 1.1.0\n"},
		{ID: "component.fmt.exists", Category: entities.CategoryComponent, Component: "fmt",
			Status: entities.StatusError, Duration: 2 * time.Millisecond, Message: "stat failed: permission denied"},
	}
	summary := entities.Summarize(results)
	return &entities.RunReport{
		ReportID:    "0b6a4d5e-3c1f-5a2b-9d8e-7f6a5b4c3d2e",
		Tool:        "distcheck",
		ToolVersion: "1.0.0",
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		Configuration: entities.RunConfiguration{
			ArtifactPath: "/tmp/app-1.2.0-essential-x64.tar.gz",
			OutputDir:    "distcheck-out",
			Parallel:     4,
		},
		Artifact: entities.ArtifactInfo{
			Name:      "app-1.2.0-essential-x64.tar.gz",
			Origin:    "/tmp/app-1.2.0-essential-x64.tar.gz",
			Extracted: true,
		},
		Profile: entities.Profile{
			Tier:               entities.TierEssential,
			Architecture:       entities.ArchX64,
			TierSource:         "manifest",
			ArchitectureSource: "file name",
			Ambiguous:          true,
			Components:         []string{"fmt", "lint"},
		},
		Results: results,
		Summary: summary,
		Regressions: []entities.Regression{
			{ID: "functional.version", Previous: entities.StatusPass, Current: entities.StatusFail},
		},
		ExitCode: summary.ExitCode(),
	}
}

func TestRenderText_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sample_report", []byte(RenderText(sampleReport())))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([][]string{
		{"A", "LONGER", "X"},
		{"LONGEST", "B", ""},
	}, "  ")

	assert.Equal(t, "  A        LONGER  X\n  LONGEST  B       \n", out)
	assert.Empty(t, renderTable(nil, ""))
}

func TestSummaryRows(t *testing.T) {
	rows := summaryRows(sampleReport().Summary)

	require.Len(t, rows, len(entities.AllCategories)+2)
	assert.Equal(t, []string{"CATEGORY", "TOTAL", "PASS", "FAIL", "ERROR", "SKIPPED"}, rows[0])
	assert.Equal(t, []string{"build", "2", "1", "0", "0", "1"}, rows[2])
	assert.Equal(t, []string{"overall", "5", "2", "1", "1", "1"}, rows[len(rows)-1])
}


func streamAll(c *Console, report *entities.RunReport) {
	events := make(chan entities.CheckEvent, len(report.Results))
	for i, r := range report.Results {
		events <- entities.CheckEvent{Index: i, Total: len(report.Results), Result: r}
	}
	close(events)
	c.Stream(events)
}

func TestConsole_StreamHidesSelectionSkips(t *testing.T) {
	var buf bytes.Buffer
	streamAll(NewConsole(&buf, false), sampleReport())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"[1/5] PASS  env.os-supported (3ms)",
		"[2/5] PASS  build.main-executable (1ms)",
		"[4/5] FAIL  functional.version (120ms): version output does not contain 1.2.0",
		"[5/5] ERROR component.fmt.exists (2ms): stat failed: permission denied",
	}, lines)
}

func TestConsole_StreamVerboseShowsEverything(t *testing.T) {
	var buf bytes.Buffer
	streamAll(NewConsole(&buf, true), sampleReport())

	assert.Contains(t, buf.String(), "[3/5] SKIP  build.machine-type.arm64: not applicable to architecture\n")
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, false).Summary(sampleReport())
	out := buf.String()

	assert.Contains(t, out, "Problems:\n")
	assert.Contains(t, out, "  FAIL  functional.version: version output does not contain 1.2.0 [logs/functional.version.log]\n")
	assert.Contains(t, out, "  ERROR component.fmt.exists: stat failed: permission denied\n")
	assert.Contains(t, out, "  functional.version: pass -> fail\n")
	assert.Contains(t, out, "Summary for app-1.2.0-essential-x64.tar.gz (tier essential, architecture x64)\n")
	assert.Contains(t, out, "  overall      5      2     1     1      1\n")
	assert.True(t, strings.HasSuffix(out, "ERROR (exit 2)\n"), "got %q", out)
	assert.NotContains(t, out, "\x1b[", "a buffer is not a terminal")
}

func TestConsole_SummaryPassedAndCancelled(t *testing.T) {
	report := sampleReport()
	report.Results = report.Results[:3]
	report.Summary = entities.Summarize(report.Results)
	report.ExitCode = report.Summary.ExitCode()
	report.Regressions = nil
	report.Cancelled = true

	var buf bytes.Buffer
	NewConsole(&buf, false).Summary(report)

	assert.NotContains(t, buf.String(), "Problems:")
	assert.Contains(t, buf.String(), "PASSED\n")
	assert.Contains(t, buf.String(), "run was cancelled")
}

func TestPublisher_WritesAllSinks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	report := sampleReport()
	before := append([]entities.CheckResult(nil), report.Results...)

	var console bytes.Buffer
	p := NewPublisher(Options{OutputDir: dir, Console: &console})
	require.NoError(t, p.Publish(report))

	assert.Equal(t, before, report.Results, "publishing leaves the report untouched")
	entries, err := os.ReadDir(filepath.Join(dir, LogsDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	logData, err := os.ReadFile(filepath.Join(dir, "logs", "functional.version.log"))
	require.NoError(t, err)
	assert.Equal(t, "app 1.1.0\n", string(logData))

	raw, err := os.ReadFile(filepath.Join(dir, JSONFileName))
	require.NoError(t, err)
	var decoded struct {
		ReportID string `json:"report_id"`
		ExitCode int    `json:"exit_code"`
		Results  []struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			LogPath string `json:"log_path"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report.ReportID, decoded.ReportID)
	assert.Equal(t, entities.ExitError, decoded.ExitCode)
	require.Len(t, decoded.Results, 5)
	assert.Equal(t, "functional.version", decoded.Results[3].ID)
	assert.Equal(t, "logs/functional.version.log", decoded.Results[3].LogPath)
	assert.NotContains(t, string(raw), "app 1.1.0", "captured output stays in the log file")

	text, err := os.ReadFile(filepath.Join(dir, TextFileName))
	require.NoError(t, err)
	assert.Equal(t, RenderText(report), string(text))

	metrics, err := os.ReadFile(filepath.Join(dir, MetricsFileName))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `distcheck_checks{category="build",status="skipped"} 1`)
	assert.Contains(t, string(metrics), `distcheck_check_duration_seconds{category="functional",check="functional.version",status="fail"} 0.12`)
	assert.Contains(t, string(metrics), "distcheck_exit_code 2")

	assert.Contains(t, console.String(), "ERROR (exit 2)")
}

func TestPublisher_SinkFailureKeepsConsole(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	var console bytes.Buffer
	p := NewPublisher(Options{OutputDir: blocker, Console: &console})
	err := p.Publish(sampleReport())

	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrReportWriteFailed))
	assert.Contains(t, console.String(), "Summary for")
}

func TestPublisher_StreamWithoutConsoleDrains(t *testing.T) {
	p := NewPublisher(Options{})
	events := make(chan entities.CheckEvent, 1)
	events <- entities.CheckEvent{Index: 0, Total: 1}
	close(events)

	p.Stream(events)
	_, open := <-events
	assert.False(t, open)
}
