package checks

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

var supportedHostOS = map[string]bool{
	"linux":   true,
	"darwin":  true,
	"windows": true,
}

func environmentChecks() []Check {
	def := func(id, description string) entities.CheckDefinition {
		return entities.CheckDefinition{
			ID:          id,
			Category:    entities.CategoryEnvironment,
			Description: description,
			MinTier:     entities.TierMinimal,
		}
	}

	walk := def("env.path-length", "Artifact paths stay within the host path-length limit")
	walk.Timeout = FilesystemLimit
	readable := def("env.artifact-readable", "Every file in the artifact can be opened")
	readable.Timeout = FilesystemLimit

	return []Check{
		{def("env.os-supported", "Host operating system is supported"), checkHostOS},
		{def("env.required-tools", "Host tools the artifact needs are on PATH"), checkHostTools},
		{def("env.disk-space", "Output volume has the minimum free space"), checkDiskSpace},
		{def("env.output-writable", "Output directory is writable"), checkOutputWritable},
		{def("env.temp-writable", "Temporary directory is writable"), checkTempWritable},
		{walk, checkPathLength},
		{readable, checkArtifactReadable},
	}
}

func checkHostOS(_ context.Context, env *Env) entities.Outcome {
	name := env.Tools.Host.OS()
	if !supportedHostOS[name] {
		return entities.Fail("host operating system %s is not supported", name)
	}
	return entities.Pass("running on %s", name)
}

func checkHostTools(_ context.Context, env *Env) entities.Outcome {
	if len(env.Layout.HostTools) == 0 {
		return entities.Pass("no host tools required")
	}
	var missing []string
	for _, tool := range env.Layout.HostTools {
		if _, err := env.Tools.Host.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("missing host tools: %s", summarizeList(missing, 10))
	}
	return entities.Pass("found %d host tools", len(env.Layout.HostTools))
}

// checkDiskSpace keeps host measurements in the log so report messages stay stable
func checkDiskSpace(_ context.Context, env *Env) entities.Outcome {
	if env.Layout.MinFreeSpace <= 0 {
		return entities.Pass("no free space requirement")
	}
	need := formatBytes(env.Layout.MinFreeSpace)
	dir := existingParent(env.Config.OutputDir)
	free, err := env.Tools.Host.FreeSpace(dir)
	if err != nil {
		return entities.Errorf("failed to query free space on the output volume").
			WithOutput(fmt.Sprintf("free space query on %s: %v\n", dir, err))
	}
	//nolint:gosec // G115: display only
	measured := fmt.Sprintf("%s free on %s, need %s\n", formatBytes(int64(free)), dir, need)
	//nolint:gosec // G115: MinFreeSpace is positive here
	if free < uint64(env.Layout.MinFreeSpace) {
		return entities.Fail("output volume has less than %s free", need).WithOutput(measured)
	}
	return entities.Pass("output volume has at least %s free", need).WithOutput(measured)
}

// existingParent walks up until it finds a directory that exists
func existingParent(dir string) string {
	if dir == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func checkOutputWritable(_ context.Context, env *Env) entities.Outcome {
	dir := env.Config.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return entities.Fail("cannot create output directory %s: %v", dir, err)
	}
	return probeWritable(dir)
}

func checkTempWritable(_ context.Context, _ *Env) entities.Outcome {
	return probeWritable(os.TempDir())
}

func probeWritable(dir string) entities.Outcome {
	f, err := os.CreateTemp(dir, ".distcheck-probe-*")
	if err != nil {
		return entities.Fail("%s is not writable: %v", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return entities.Errorf("failed to remove probe file %s: %v", name, err)
	}
	return entities.Pass("%s is writable", dir)
}

func checkPathLength(ctx context.Context, env *Env) entities.Outcome {
	limit := env.Layout.MaxPathLength
	if limit <= 0 {
		return entities.Skip("layout sets no path-length limit")
	}

	var longest string
	var tooLong []string
	err := env.walkArtifact(ctx, func(rel string, _ fs.DirEntry) error {
		if len(rel) > len(longest) {
			longest = rel
		}
		if len(rel) > limit {
			tooLong = append(tooLong, rel)
		}
		return nil
	})
	if err != nil {
		return entities.Errorf("failed to walk artifact: %v", err)
	}
	if len(tooLong) > 0 {
		return entities.Fail("%d paths exceed %d characters (longest %d: %s)",
			len(tooLong), limit, len(longest), longest).WithOutput(strings.Join(tooLong, "\n") + "\n")
	}
	return entities.Pass("longest relative path is %d characters (limit %d)", len(longest), limit)
}

func checkArtifactReadable(ctx context.Context, env *Env) entities.Outcome {
	var unreadable []string
	files := 0
	err := env.walkArtifact(ctx, func(rel string, d fs.DirEntry) error {
		if !d.Type().IsRegular() {
			return nil
		}
		files++
		//nolint:gosec // G304: path is inside the artifact under test
		f, err := os.Open(env.Artifact.Path(rel))
		if err != nil {
			unreadable = append(unreadable, rel)
			return nil
		}
		return f.Close()
	})
	if err != nil {
		return entities.Errorf("failed to walk artifact: %v", err)
	}
	if len(unreadable) > 0 {
		return entities.Fail("%d files cannot be opened: %s", len(unreadable), summarizeList(unreadable, 5))
	}
	if files == 0 {
		return entities.Fail("artifact contains no files")
	}
	return entities.Pass("%d files readable", files)
}
