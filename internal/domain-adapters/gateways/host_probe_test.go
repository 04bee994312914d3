package gateways

import (
	"runtime"
	"testing"
)

func TestHostProbe_FreeSpace(t *testing.T) {
	free, err := NewHostProbe().FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace() error = %v", err)
	}
	if free == 0 {
		t.Error("FreeSpace() = 0, want available bytes")
	}
}

func TestHostProbe_FreeSpaceMissingPath(t *testing.T) {
	if _, err := NewHostProbe().FreeSpace("/nonexistent/volume/path"); err == nil {
		t.Error("FreeSpace() should fail for a missing path")
	}
}

func TestHostProbe_OS(t *testing.T) {
	if got := NewHostProbe().OS(); got != runtime.GOOS {
		t.Errorf("OS() = %q, want %q", got, runtime.GOOS)
	}
}

func TestHostProbe_LookPath(t *testing.T) {
	probe := NewHostProbe()
	if _, err := probe.LookPath("distcheck-definitely-missing-tool"); err == nil {
		t.Error("LookPath() should fail for a missing tool")
	}
}
