package checks_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/distcheck/internal/domain-adapters/gateways"
	"github.com/ochairo/distcheck/internal/domain/checks"
	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/services"
	"github.com/ochairo/distcheck/internal/external-adapters/yaml"
	"github.com/ochairo/distcheck/internal/testutil"
)

type harness struct {
	pkg      *testutil.Package
	env      *checks.Env
	registry *checks.Registry
}

func newHarness(t *testing.T, tier entities.Tier) *harness {
	t.Helper()
	pkg := testutil.NewPackage(t, "app-"+string(tier)+"-x64", tier, entities.ArchX64)
	return rebuild(t, pkg, tier)
}

// rebuild recreates the environment after the package or layout changed
func rebuild(t *testing.T, pkg *testutil.Package, tier entities.Tier) *harness {
	t.Helper()
	layout, err := yaml.NewLayoutRepository().GetLayout(context.Background(), "")
	require.NoError(t, err)
	toolkit, err := gateways.NewToolkit(nil, "")
	require.NoError(t, err)

	artifact := &entities.Artifact{Name: filepath.Base(pkg.Root), Root: pkg.Root, Tier: tier, Architecture: entities.ArchX64}
	profile := entities.Profile{
		Tier:         tier,
		Architecture: entities.ArchX64,
		Components:   services.PresentComponents(artifact, layout),
	}
	cfg := entities.RunConfiguration{OutputDir: filepath.Join(t.TempDir(), "out")}

	registry, err := checks.NewRegistry(layout, profile.Components)
	require.NoError(t, err)
	return &harness{
		pkg:      pkg,
		env:      checks.NewEnv(artifact, layout, profile, cfg, toolkit, nil),
		registry: registry,
	}
}

func (h *harness) run(t *testing.T, id string) entities.Outcome {
	t.Helper()
	check, ok := h.registry.Lookup(id)
	require.True(t, ok, "unknown check %s", id)
	env := h.env
	if check.Spawns {
		env = env.WithWorkDir(t.TempDir())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return check.Run(ctx, env)
}

func requireStatus(t *testing.T, h *harness, id string, want entities.Status) entities.Outcome {
	t.Helper()
	outcome := h.run(t, id)
	require.Equal(t, want, outcome.Status, "%s: %s", id, outcome.Message)
	return outcome
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fixture executables are POSIX shell scripts")
	}
}

func TestEnvironmentChecks(t *testing.T) {
	h := newHarness(t, entities.TierEssential)

	for _, id := range []string{
		"env.os-supported", "env.required-tools", "env.disk-space",
		"env.output-writable", "env.temp-writable", "env.path-length", "env.artifact-readable",
	} {
		requireStatus(t, h, id, entities.StatusPass)
	}

	h.env.Layout.HostTools = []string{"distcheck-definitely-missing-tool"}
	outcome := requireStatus(t, h, "env.required-tools", entities.StatusFail)
	assert.Contains(t, outcome.Message, "distcheck-definitely-missing-tool")

	outcome = requireStatus(t, h, "env.disk-space", entities.StatusPass)
	assert.Contains(t, outcome.Message, "output volume has at least")
	assert.Contains(t, outcome.Output, "free on ")

	h.env.Layout.MinFreeSpace = 1 << 62
	outcome = requireStatus(t, h, "env.disk-space", entities.StatusFail)
	assert.Equal(t, "output volume has less than 4.0 EiB free", outcome.Message)
	assert.Contains(t, outcome.Output, "need 4.0 EiB")

	h.env.Layout.MaxPathLength = 5
	outcome = requireStatus(t, h, "env.path-length", entities.StatusFail)
	assert.NotEmpty(t, outcome.Output)

	h.env.Layout.MaxPathLength = 0
	requireStatus(t, h, "env.path-length", entities.StatusSkipped)
}

func TestBuildChecks_ValidPackage(t *testing.T) {
	h := newHarness(t, entities.TierEssential)

	for _, id := range []string{
		checks.IDMainExecutable, checks.IDManifestPresent, checks.IDManifestSchema, "build.manifest-fields",
		checks.IDChecksumsFile, "build.checksums-verify", checks.IDRuntimePresent, "build.runtime-version",
	} {
		requireStatus(t, h, id, entities.StatusPass)
	}

	requireStatus(t, h, "build.checksums-signature", entities.StatusSkipped)
	requireStatus(t, h, "build.binary-hardening", entities.StatusSkipped)

	outcome := requireStatus(t, h, "build.machine-type.x64", entities.StatusFail)
	assert.Contains(t, outcome.Message, "expected a native x64 binary")
}

func TestBuildChecks_MissingExecutable(t *testing.T) {
	h := newHarness(t, entities.TierMinimal)
	h.pkg.Remove("bin/app")

	outcome := requireStatus(t, h, checks.IDMainExecutable, entities.StatusFail)
	assert.Contains(t, outcome.Message, "bin/app is missing")
}

func TestBuildChecks_NotExecutable(t *testing.T) {
	skipOnWindows(t)
	h := newHarness(t, entities.TierMinimal)
	h.pkg.Set("bin/app", testutil.MainScript, 0644)

	outcome := requireStatus(t, h, checks.IDMainExecutable, entities.StatusFail)
	assert.Contains(t, outcome.Message, "not executable")
}

func TestBuildChecks_MalformedManifestNamesField(t *testing.T) {
	pkg := testutil.NewPackage(t, "app", entities.TierMinimal, entities.ArchX64)
	pkg.SetManifest(`{"name": "app", "version": }`)
	pkg.Seal()
	h := rebuild(t, pkg, entities.TierMinimal)

	requireStatus(t, h, checks.IDManifestPresent, entities.StatusPass)
	outcome := requireStatus(t, h, checks.IDManifestSchema, entities.StatusFail)
	assert.Contains(t, outcome.Message, `"version"`)
}

func TestBuildChecks_SchemaViolation(t *testing.T) {
	pkg := testutil.NewPackage(t, "app", entities.TierMinimal, entities.ArchX64)
	pkg.SetManifest(`{"name": "app", "version": "banana"}`)
	pkg.Seal()
	h := rebuild(t, pkg, entities.TierMinimal)

	outcome := requireStatus(t, h, checks.IDManifestSchema, entities.StatusFail)
	assert.Contains(t, outcome.Message, "version")
}

func TestBuildChecks_ManifestFieldsDisagree(t *testing.T) {
	pkg := testutil.NewPackage(t, "app", entities.TierEssential, entities.ArchX64)
	pkg.SetManifest(testutil.Manifest(entities.TierFull, entities.ArchARM64, []string{"formatter"}))
	pkg.Seal()
	h := rebuild(t, pkg, entities.TierEssential)

	outcome := requireStatus(t, h, "build.manifest-fields", entities.StatusFail)
	assert.Contains(t, outcome.Message, `tier is "full"`)
	assert.Contains(t, outcome.Message, `architecture is "arm64"`)
	assert.Contains(t, outcome.Message, `"linter"`)
}

func TestBuildChecks_TamperedFile(t *testing.T) {
	h := newHarness(t, entities.TierMinimal)
	h.pkg.Tamper("lib/app.jar", "tampered\n")

	outcome := requireStatus(t, h, "build.checksums-verify", entities.StatusFail)
	assert.Contains(t, outcome.Message, "lib/app.jar")
	assert.Contains(t, outcome.Output, "lib/app.jar")
}

func TestBuildChecks_RuntimeVersionMismatch(t *testing.T) {
	h := newHarness(t, entities.TierMinimal)
	h.pkg.Set("runtime/VERSION", "18.0.0\n", 0644)

	outcome := requireStatus(t, h, "build.runtime-version", entities.StatusFail)
	assert.Contains(t, outcome.Message, "18.0.0")
}

func TestStructureChecks_ValidPackage(t *testing.T) {
	for _, tier := range entities.AllTiers {
		t.Run(string(tier), func(t *testing.T) {
			h := newHarness(t, tier)
			for _, id := range []string{
				"structure.required-dirs", "structure.required-files", "structure.launchers",
				"structure.license", "structure.documentation", "structure.forbidden-files",
				"structure.symlinks", "structure.size-bounds", "structure.component-set",
			} {
				requireStatus(t, h, id, entities.StatusPass)
			}
		})
	}
}

func TestStructureChecks_Violations(t *testing.T) {
	h := newHarness(t, entities.TierComplete)

	h.pkg.Remove("share/doc/CHANGELOG.md")
	outcome := requireStatus(t, h, "structure.required-files", entities.StatusFail)
	assert.Contains(t, outcome.Message, "share/doc/CHANGELOG.md")

	h.pkg.Set("README.md", "# App\n\n## Installation\n", 0644)
	outcome = requireStatus(t, h, "structure.documentation", entities.StatusFail)
	assert.Contains(t, outcome.Message, "Usage")

	h.pkg.Set("lib/.DS_Store", "junk", 0644)
	h.pkg.Set("lib/node_modules/x/index.js", "junk", 0644)
	outcome = requireStatus(t, h, "structure.forbidden-files", entities.StatusFail)
	assert.Contains(t, outcome.Message, "2 forbidden entries")

	h.pkg.Set("LICENSE", "  \n", 0644)
	requireStatus(t, h, "structure.license", entities.StatusFail)
}

func TestStructureChecks_EscapingSymlink(t *testing.T) {
	skipOnWindows(t)
	h := newHarness(t, entities.TierMinimal)
	require.NoError(t, os.Symlink("../../../etc/passwd", h.pkg.Path("lib/escape")))

	outcome := requireStatus(t, h, "structure.symlinks", entities.StatusFail)
	assert.Contains(t, outcome.Message, "lib/escape")
}

func TestStructureChecks_ComponentSetMismatch(t *testing.T) {
	pkg := testutil.NewPackage(t, "app", entities.TierEssential, entities.ArchX64)
	pkg.AddComponent("debugger")
	pkg.Seal()
	h := rebuild(t, pkg, entities.TierEssential)

	outcome := requireStatus(t, h, "structure.component-set", entities.StatusFail)
	assert.Contains(t, outcome.Message, "debugger")
}

func TestFunctionalChecks_ValidPackage(t *testing.T) {
	skipOnWindows(t)
	h := newHarness(t, entities.TierMinimal)
	h.env.Config.ExtraEnv = map[string]string{"HTTP_PROXY": "http://proxy.internal:3128"}

	for _, id := range []string{
		"functional.version", "functional.help", "functional.startup", "functional.startup-latency",
		"functional.env-propagation", "functional.invalid-input", "functional.missing-file", "functional.launchers",
	} {
		requireStatus(t, h, id, entities.StatusPass)
	}

	// measured latency goes to the check log, the message only names the budget
	outcome := requireStatus(t, h, "functional.startup-latency", entities.StatusPass)
	assert.Equal(t, "startup within the 5s budget", outcome.Message)
	assert.Contains(t, outcome.Output, "startup took ")
}

func TestFunctionalChecks_VersionMismatch(t *testing.T) {
	skipOnWindows(t)
	pkg := testutil.NewPackage(t, "app", entities.TierMinimal, entities.ArchX64)
	pkg.SetManifest(`{"name": "app", "version": "9.9.9", "components": []}`)
	pkg.Seal()
	h := rebuild(t, pkg, entities.TierMinimal)

	outcome := requireStatus(t, h, "functional.version", entities.StatusFail)
	assert.Contains(t, outcome.Message, "9.9.9")
	assert.Contains(t, outcome.Output, "--- stdout ---")
}

func TestFunctionalChecks_AcceptsInvalidInput(t *testing.T) {
	skipOnWindows(t)
	h := newHarness(t, entities.TierMinimal)
	h.pkg.Set("bin/app", "#!/bin/sh\necho ok\nexit 0\n", 0755)

	requireStatus(t, h, "functional.invalid-input", entities.StatusFail)
	requireStatus(t, h, "functional.missing-file", entities.StatusFail)
	requireStatus(t, h, "functional.env-propagation", entities.StatusFail)
}

func TestFunctionalChecks_Timeout(t *testing.T) {
	skipOnWindows(t)
	h := newHarness(t, entities.TierMinimal)
	h.env.Layout.Invocation.SmokeArgs = []string{"--sleep", "10"}

	check, ok := h.registry.Lookup("functional.startup")
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	outcome := check.Run(ctx, h.env.WithWorkDir(t.TempDir()))
	assert.Equal(t, entities.StatusError, outcome.Status)
	assert.Contains(t, outcome.Message, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestComponentChecks(t *testing.T) {
	skipOnWindows(t)
	h := newHarness(t, entities.TierComplete)

	for _, id := range []string{
		"component.language-server.exists", "component.language-server.executable",
		"component.language-server.version", "component.language-server.colocated-files",
		"component.language-server.size", "component.language-server.layout",
	} {
		requireStatus(t, h, id, entities.StatusPass)
	}
	requireStatus(t, h, "component.language-server.architecture", entities.StatusSkipped)

	outcome := requireStatus(t, h, "component.debugger.exists", entities.StatusFail)
	assert.Contains(t, outcome.Message, "components/debugger")

	h.pkg.Remove("components/language-server/config/defaults.json")
	outcome = requireStatus(t, h, "component.language-server.colocated-files", entities.StatusFail)
	assert.Contains(t, outcome.Message, "config/defaults.json")

	h.pkg.Remove("components/language-server/lib")
	requireStatus(t, h, "component.language-server.layout", entities.StatusFail)
}

func TestComponentChecks_UnknownComponent(t *testing.T) {
	skipOnWindows(t)
	pkg := testutil.NewPackage(t, "app", entities.TierMinimal, entities.ArchX64)
	pkg.AddComponent("profiler")
	pkg.Seal()
	h := rebuild(t, pkg, entities.TierMinimal)

	requireStatus(t, h, "component.profiler.exists", entities.StatusPass)
	requireStatus(t, h, "component.profiler.version", entities.StatusPass)
}
