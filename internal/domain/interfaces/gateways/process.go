package gateways

import (
	"context"
	"time"
)

// ProcessSpec describes one invocation of a bundled executable
type ProcessSpec struct {
	Path    string
	Args    []string
	Dir     string            // isolated working directory
	Env     map[string]string // added on top of the inherited environment
	Timeout time.Duration     // zero relies on the caller's context deadline
}

// ProcessResult captures the outcome of a process
type ProcessResult struct {
	PID      int
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Signaled bool // terminated by a signal rather than exiting
	Err      error
}

// Started reports whether the process was launched at all
func (r *ProcessResult) Started() bool {
	return r.PID > 0
}

// Transcript renders command output for diagnostic logs
func (r *ProcessResult) Transcript() string {
	return "--- stdout ---\n" + r.Stdout + "\n--- stderr ---\n" + r.Stderr + "\n"
}

// ProcessRunner launches executables with bounded time and guaranteed cleanup
type ProcessRunner interface {
	Run(ctx context.Context, spec ProcessSpec) *ProcessResult
}

// HostProbe answers questions about the machine running the harness
type HostProbe interface {
	FreeSpace(path string) (uint64, error)
	LookPath(name string) (string, error)
	OS() string
}
