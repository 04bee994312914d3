package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

const (
	// maxCapturedOutput bounds each of stdout and stderr
	maxCapturedOutput = 1 << 20

	// waitDelay is how long Wait waits for output pipes after the process is killed
	waitDelay = 2 * time.Second
)

// ProcessRunner launches bundled executables in their own process group so a
// timeout reclaims the whole tree
type ProcessRunner struct {
	logger interfaces.Logger
}

// NewProcessRunner creates a new process runner
func NewProcessRunner(logger interfaces.Logger) *ProcessRunner {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ProcessRunner{logger: logger}
}

var _ gateways.ProcessRunner = (*ProcessRunner)(nil)

// Run executes spec and waits for it to exit, time out, or be cancelled
func (r *ProcessRunner) Run(ctx context.Context, spec gateways.ProcessSpec) *gateways.ProcessResult {
	result := &gateways.ProcessResult{ExitCode: -1}

	execCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	//nolint:gosec // G204: executing the artifact's own binaries is the point of the check
	cmd := exec.CommandContext(execCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	stdout := &cappedBuffer{limit: maxCapturedOutput}
	stderr := &cappedBuffer{limit: maxCapturedOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.Err = fmt.Errorf("failed to start %s: %w", spec.Path, err)
		return result
	}
	result.PID = cmd.Process.Pid

	r.logger.Debug("process started",
		interfaces.F("path", spec.Path),
		interfaces.F("pid", result.PID))

	err := cmd.Wait()
	result.Duration = time.Since(start)

	// Background children outliving the leader are reclaimed with the group
	killProcessGroup(result.PID)

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if execCtx.Err() != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	}

	if err == nil {
		result.ExitCode = 0
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Signaled = result.ExitCode == -1
		if !result.TimedOut && !result.Signaled {
			return result
		}
	}

	switch {
	case result.TimedOut:
		result.Err = errors.New("process timed out")
	case ctx.Err() != nil:
		result.Err = fmt.Errorf("process cancelled: %w", ctx.Err())
	default:
		result.Err = err
	}

	r.logger.Debug("process terminated",
		interfaces.F("path", spec.Path),
		interfaces.F("pid", result.PID),
		interfaces.F("error", result.Err))

	return result
}

// mergeEnv overlays extra onto base, replacing existing keys
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		if _, overridden := extra[envKey(kv)]; !overridden {
			env = append(env, kv)
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// envKey returns the variable name of a KEY=value pair. Windows keeps
// per-drive variables such as "=C:=C:\" with a leading '='.
func envKey(kv string) string {
	if kv == "" {
		return kv
	}
	if i := strings.IndexByte(kv[1:], '='); i >= 0 {
		return kv[:i+1]
	}
	return kv
}

// cappedBuffer keeps the first limit bytes and discards the rest
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
