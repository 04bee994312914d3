//go:build !windows

package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	//nolint:gosec // G306: test script must be executable
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestProcessRunner_Success(t *testing.T) {
	runner := NewProcessRunner(nil)

	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path: writeScript(t, "echo 'Hello, World!'"),
	})

	if result.Err != nil {
		t.Errorf("Run() failed: %v", result.Err)
	}
	if result.ExitCode != 0 {
		t.Errorf("Run() exit code = %d, want 0", result.ExitCode)
	}
	if result.Stdout != "Hello, World!\n" {
		t.Errorf("Run() stdout = %q, want %q", result.Stdout, "Hello, World!\n")
	}
	if !result.Started() {
		t.Error("Run() should report the process as started")
	}
}

func TestProcessRunner_Failure(t *testing.T) {
	runner := NewProcessRunner(nil)

	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path: writeScript(t, "echo oops >&2; exit 42"),
	})

	if result.ExitCode != 42 {
		t.Errorf("Run() exit code = %d, want 42", result.ExitCode)
	}
	if result.Err != nil {
		t.Errorf("Run() err = %v, want nil for a normal non-zero exit", result.Err)
	}
	if result.Stderr != "oops\n" {
		t.Errorf("Run() stderr = %q, want %q", result.Stderr, "oops\n")
	}
}

func TestProcessRunner_Environment(t *testing.T) {
	runner := NewProcessRunner(nil)

	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path: writeScript(t, "echo $TEST_VAR"),
		Env:  map[string]string{"TEST_VAR": "test_value"},
	})

	if strings.TrimSpace(result.Stdout) != "test_value" {
		t.Errorf("Run() stdout = %q, want test_value", result.Stdout)
	}
}

func TestProcessRunner_WorkingDirectory(t *testing.T) {
	runner := NewProcessRunner(nil)
	workDir := t.TempDir()

	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path: writeScript(t, "pwd"),
		Dir:  workDir,
	})

	want, _ := filepath.EvalSymlinks(workDir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	if got != want {
		t.Errorf("Run() pwd = %q, want %q", got, want)
	}
}

func TestProcessRunner_TimeoutKillsProcess(t *testing.T) {
	runner := NewProcessRunner(nil)
	pidFile := filepath.Join(t.TempDir(), "pid")

	start := time.Now()
	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path:    writeScript(t, "echo $$ > "+pidFile+"; exec sleep 10"),
		Timeout: time.Second,
	})
	elapsed := time.Since(start)

	if !result.TimedOut {
		t.Errorf("Run() TimedOut = false, want true")
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), "timed out") {
		t.Errorf("Run() err = %v, want timed out", result.Err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run() took %v, want about 1s", elapsed)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("Failed to read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("Invalid pid file: %v", err)
	}
	if err := unix.Kill(pid, 0); !errors.Is(err, unix.ESRCH) {
		t.Errorf("process %d still running after timeout (kill err = %v)", pid, err)
	}
}

func TestProcessRunner_KillsBackgroundChildren(t *testing.T) {
	runner := NewProcessRunner(nil)
	pidFile := filepath.Join(t.TempDir(), "pid")

	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path:    writeScript(t, "sleep 30 >/dev/null 2>&1 & echo $! > "+pidFile),
		Timeout: 5 * time.Second,
	})
	if result.ExitCode != 0 {
		t.Fatalf("Run() exit code = %d, want 0", result.ExitCode)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("Failed to read pid file: %v", err)
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("background child %d survived its process group", pid)
}

func TestProcessRunner_MissingExecutable(t *testing.T) {
	runner := NewProcessRunner(nil)

	result := runner.Run(context.Background(), gateways.ProcessSpec{
		Path: filepath.Join(t.TempDir(), "missing"),
	})

	if result.Started() {
		t.Error("Run() should not report a missing executable as started")
	}
	if result.Err == nil {
		t.Error("Run() should fail for a missing executable")
	}
}

func TestProcessRunner_Cancelled(t *testing.T) {
	runner := NewProcessRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	result := runner.Run(ctx, gateways.ProcessSpec{
		Path: writeScript(t, "exec sleep 10"),
	})

	if result.TimedOut {
		t.Error("Run() TimedOut = true, want false on cancellation")
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), "cancelled") {
		t.Errorf("Run() err = %v, want cancelled", result.Err)
	}
}

func TestCappedBuffer(t *testing.T) {
	buf := &cappedBuffer{limit: 4}
	n, err := buf.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v, want 6, nil", n, err)
	}
	if got := buf.String(); got != "abcd\n[output truncated]" {
		t.Errorf("String() = %q", got)
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	want := []string{"A=1", "B=3", "C=4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("mergeEnv() = %v, want %v", got, want)
	}
}
