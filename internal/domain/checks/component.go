package checks

import (
	"context"
	"path"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

var defaultComponentVersionArgs = []string{"--version"}

func componentChecks(spec entities.ComponentSpec) []Check {
	prefix := "component." + spec.Name + "."
	minTier := spec.MinTier
	if minTier == "" {
		minTier = entities.TierMinimal
	}
	def := func(suffix, description string, deps ...string) entities.CheckDefinition {
		var dependsOn []string
		for _, d := range deps {
			dependsOn = append(dependsOn, prefix+d)
		}
		return entities.CheckDefinition{
			ID:          prefix + suffix,
			Category:    entities.CategoryComponent,
			Description: spec.Name + ": " + description,
			MinTier:     minTier,
			DependsOn:   dependsOn,
			Component:   spec.Name,
		}
	}

	version := def("version", "version invocation succeeds", "executable")
	version.Spawns = true
	size := def("size", "size is within bounds", "exists")
	size.Timeout = FilesystemLimit

	c := componentCheck{spec: spec}
	return []Check{
		{def("exists", "component directory exists"), c.exists},
		{def("executable", "entry point is an executable file", "exists"), c.executable},
		{version, c.version},
		{def("colocated-files", "required files ship next to the component", "exists"), c.colocatedFiles},
		{size, c.size},
		{def("layout", "internal directories exist", "exists"), c.layout},
		{def("architecture", "native entry point matches the architecture", "executable"), c.architecture},
	}
}

// componentCheck binds check bodies to one component
type componentCheck struct {
	spec entities.ComponentSpec
}

func (c componentCheck) dir(env *Env) string {
	return env.Layout.ComponentDir(c.spec.Name)
}

func (c componentCheck) entryPoint(env *Env) string {
	exe := c.spec.Executable
	if exe == "" {
		exe = "bin/" + c.spec.Name
	}
	return path.Join(c.dir(env), exe)
}

func (c componentCheck) exists(_ context.Context, env *Env) entities.Outcome {
	dir := c.dir(env)
	info, err := env.stat(dir)
	if err != nil || !info.IsDir() {
		return entities.Fail("%s is missing", dir)
	}
	return entities.Pass("%s present", dir)
}

func (c componentCheck) executable(_ context.Context, env *Env) entities.Outcome {
	rel := c.entryPoint(env)
	info, err := env.stat(rel)
	if err != nil {
		return entities.Fail("%s is missing", rel)
	}
	if !info.Mode().IsRegular() {
		return entities.Fail("%s is not a regular file", rel)
	}
	if !isExecutable(info) {
		return entities.Fail("%s is not executable (mode %s)", rel, info.Mode().Perm())
	}
	return entities.Pass("%s", rel)
}

func (c componentCheck) version(ctx context.Context, env *Env) entities.Outcome {
	args := c.spec.VersionArgs
	if len(args) == 0 {
		args = defaultComponentVersionArgs
	}
	res := env.run(ctx, env.Artifact.Path(c.entryPoint(env)), args, nil)
	if outcome, failed := processFailure(ctx, res); failed {
		return outcome
	}
	if res.ExitCode != 0 {
		return entities.Fail("version invocation exited %d", res.ExitCode).WithOutput(res.Transcript())
	}
	output := strings.TrimSpace(res.Stdout + res.Stderr)
	if output == "" {
		return entities.Fail("version invocation printed nothing").WithOutput(res.Transcript())
	}
	if want := c.manifestVersion(env); want != "" && !strings.Contains(output, strings.TrimPrefix(want, "v")) {
		return entities.Fail("version output does not mention manifest version %s", want).WithOutput(res.Transcript())
	}
	return entities.Pass("%s", firstOutputLine(output))
}

func (c componentCheck) manifestVersion(env *Env) string {
	manifest, _, err := env.Manifest()
	if err != nil || manifest == nil {
		return ""
	}
	for _, mc := range manifest.Components {
		if mc.Name == c.spec.Name {
			return mc.Version
		}
	}
	return ""
}

func (c componentCheck) colocatedFiles(_ context.Context, env *Env) entities.Outcome {
	if len(c.spec.Files) == 0 {
		return entities.Pass("no co-located files required")
	}
	var missing []string
	for _, f := range c.spec.Files {
		if info, err := env.stat(path.Join(c.dir(env), f)); err != nil || !info.Mode().IsRegular() {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("missing files: %s", summarizeList(missing, 10))
	}
	return entities.Pass("%d co-located files present", len(c.spec.Files))
}

func (c componentCheck) size(ctx context.Context, env *Env) entities.Outcome {
	size, err := treeSize(ctx, env.Artifact.Path(c.dir(env)))
	if err != nil {
		return entities.Errorf("failed to measure %s: %v", c.dir(env), err)
	}
	if size == 0 {
		return entities.Fail("%s contains no data", c.dir(env))
	}
	if c.spec.MaxSize > 0 && size > c.spec.MaxSize {
		return entities.Fail("%s is %s, above the limit of %s", c.dir(env), formatBytes(size), formatBytes(c.spec.MaxSize))
	}
	return entities.Pass("%s", formatBytes(size))
}

func (c componentCheck) layout(_ context.Context, env *Env) entities.Outcome {
	dirs := append([]string{path.Dir(c.spec.Executable)}, c.spec.Dirs...)
	if c.spec.Executable == "" {
		dirs[0] = "bin"
	}
	var missing []string
	for _, d := range dirs {
		if d == "." {
			continue
		}
		if info, err := env.stat(path.Join(c.dir(env), d)); err != nil || !info.IsDir() {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("missing directories: %s", summarizeList(missing, 10))
	}
	return entities.Pass("internal layout complete")
}

func (c componentCheck) architecture(_ context.Context, env *Env) entities.Outcome {
	info, err := env.Tools.Binaries.Inspect(env.Artifact.Path(c.entryPoint(env)))
	if err != nil {
		return entities.Fail("malformed executable header: %v", err)
	}
	if !info.Native() {
		return entities.Skip("entry point is a %s run by %q", info.Format, info.Interpreter)
	}
	if !info.Supports(env.Profile.Architecture) {
		return entities.Fail("entry point is %s %s, expected %s", info.Format, info.Machine, env.Profile.Architecture)
	}
	return entities.Pass("%s %s", info.Format, info.Machine)
}
