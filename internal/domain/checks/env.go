package checks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// Toolkit bundles the gateways checks rely on
type Toolkit struct {
	Binaries   gateways.BinaryInspector
	Checksums  gateways.ChecksumVerifier
	Manifests  gateways.ManifestValidator
	Documents  gateways.DocumentInspector
	Signatures gateways.SignatureVerifier // nil when no keyring was supplied
	Processes  gateways.ProcessRunner
	Host       gateways.HostProbe
}

// Env is the read-only context a check body runs against
type Env struct {
	Artifact *entities.Artifact
	Layout   *entities.Layout
	Profile  entities.Profile
	Config   entities.RunConfiguration
	Tools    Toolkit
	Logger   interfaces.Logger

	// WorkDir is an isolated scratch directory, set only for checks that spawn processes
	WorkDir string

	manifest *manifestCache
}

type manifestCache struct {
	once     sync.Once
	found    bool
	manifest *entities.Manifest
	err      error
}

// NewEnv creates the shared environment for one run
func NewEnv(artifact *entities.Artifact, layout *entities.Layout, profile entities.Profile,
	cfg entities.RunConfiguration, tools Toolkit, logger interfaces.Logger) *Env {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Env{
		Artifact: artifact,
		Layout:   layout,
		Profile:  profile,
		Config:   cfg,
		Tools:    tools,
		Logger:   logger,
		manifest: &manifestCache{},
	}
}

// WithWorkDir returns a copy of the environment bound to a per-check working directory
func (e *Env) WithWorkDir(dir string) *Env {
	clone := *e
	clone.WorkDir = dir
	return &clone
}

// Manifest loads and validates the package manifest once per run. found is false when
// the file does not exist.
func (e *Env) Manifest() (manifest *entities.Manifest, found bool, err error) {
	cache := e.manifest
	if cache == nil {
		cache = &manifestCache{}
		e.manifest = cache
	}
	cache.once.Do(func() {
		data, readErr := os.ReadFile(e.Artifact.Path(e.Layout.Manifest))
		if errors.Is(readErr, fs.ErrNotExist) {
			return
		}
		cache.found = true
		if readErr != nil {
			cache.err = fmt.Errorf("failed to read manifest: %w", readErr)
			return
		}
		cache.manifest, cache.err = e.Tools.Manifests.Validate(data)
	})
	return cache.manifest, cache.found, cache.err
}

// run launches an executable inside the working directory with the propagated environment
func (e *Env) run(ctx context.Context, path string, args []string, extra map[string]string) *gateways.ProcessResult {
	env := make(map[string]string, len(e.Config.ExtraEnv)+len(extra))
	for k, v := range e.Config.ExtraEnv {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	dir := e.WorkDir
	if dir == "" {
		dir = e.Artifact.Root
	}
	return e.Tools.Processes.Run(ctx, gateways.ProcessSpec{
		Path: path,
		Args: args,
		Dir:  dir,
		Env:  env,
	})
}

// processFailure turns a process that did not run to completion into an outcome
func processFailure(ctx context.Context, res *gateways.ProcessResult) (entities.Outcome, bool) {
	switch {
	case res.TimedOut || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return entities.Errorf("process timed out").
			WithOutput(fmt.Sprintf("killed after %s\n", res.Duration.Round(time.Millisecond)) + res.Transcript()), true
	case !res.Started():
		return entities.Errorf("failed to start: %v", res.Err), true
	case res.Err != nil:
		return entities.Errorf("%v", res.Err).WithOutput(res.Transcript()), true
	}
	return entities.Outcome{}, false
}

// stat resolves a path relative to the artifact root
func (e *Env) stat(rel string) (os.FileInfo, error) {
	return os.Stat(e.Artifact.Path(rel))
}

func isExecutable(info os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}

// walkArtifact visits every entry below the artifact root with slash-separated relative paths
func (e *Env) walkArtifact(ctx context.Context, fn func(rel string, d fs.DirEntry) error) error {
	root := e.Artifact.Root
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		return fn(filepath.ToSlash(rel), d)
	})
}

// treeSize sums regular file sizes below dir
func treeSize(ctx context.Context, dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// expandArgs substitutes a placeholder in an argument template
func expandArgs(args []string, placeholder, value string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, placeholder, value)
	}
	return out
}

// summarizeList renders at most limit items followed by a count of the rest
func summarizeList(items []string, limit int) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	if len(sorted) <= limit {
		return strings.Join(sorted, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(sorted[:limit], ", "), len(sorted)-limit)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
