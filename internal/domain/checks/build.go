package checks

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/services"
)

// Check ids other checks depend on
const (
	IDMainExecutable  = "build.main-executable"
	IDManifestPresent = "build.manifest-present"
	IDManifestSchema  = "build.manifest-schema"
	IDChecksumsFile   = "build.checksums-present"
	IDRuntimePresent  = "build.runtime-present"
)

func buildChecks() []Check {
	def := func(id, description string, deps ...string) entities.CheckDefinition {
		return entities.CheckDefinition{
			ID:          id,
			Category:    entities.CategoryBuild,
			Description: description,
			MinTier:     entities.TierMinimal,
			DependsOn:   deps,
		}
	}

	checks := []Check{
		{def(IDMainExecutable, "Main executable exists and is executable"), checkMainExecutable},
	}
	for _, arch := range entities.AllArchitectures {
		d := def("build.machine-type."+string(arch), "Main executable targets "+string(arch), IDMainExecutable)
		d.Architectures = []entities.Architecture{arch}
		checks = append(checks, Check{d, machineTypeCheck(arch)})
	}

	verify := def("build.checksums-verify", "Every checksum entry matches its file", IDChecksumsFile)
	verify.Timeout = FilesystemLimit

	return append(checks,
		Check{def("build.binary-hardening", "Main executable meets the hardening policy", IDMainExecutable), checkBinaryHardening},
		Check{def(IDManifestPresent, "Package manifest exists"), checkManifestPresent},
		Check{def(IDManifestSchema, "Package manifest is valid JSON matching the schema", IDManifestPresent), checkManifestSchema},
		Check{def("build.manifest-fields", "Manifest agrees with the detected profile and contents", IDManifestSchema), checkManifestFields},
		Check{def(IDChecksumsFile, "Checksum file exists"), checkChecksumsPresent},
		Check{verify, checkChecksumsVerify},
		Check{def("build.checksums-signature", "Checksum file carries a valid detached signature", IDChecksumsFile), checkChecksumsSignature},
		Check{def(IDRuntimePresent, "Bundled runtime directory exists"), checkRuntimePresent},
		Check{def("build.runtime-version", "Bundled runtime declares its version", IDRuntimePresent), checkRuntimeVersion},
	)
}

func checkMainExecutable(_ context.Context, env *Env) entities.Outcome {
	rel := env.Layout.Executable
	info, err := env.stat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return entities.Fail("main executable %s is missing", rel)
	}
	if err != nil {
		return entities.Fail("main executable %s is not accessible: %v", rel, err)
	}
	if !info.Mode().IsRegular() {
		return entities.Fail("main executable %s is not a regular file", rel)
	}
	if !isExecutable(info) {
		return entities.Fail("main executable %s is not executable (mode %s)", rel, info.Mode().Perm())
	}
	if info.Size() == 0 {
		return entities.Fail("main executable %s is empty", rel)
	}
	return entities.Pass("%s (%s)", rel, formatBytes(info.Size()))
}

func machineTypeCheck(arch entities.Architecture) Func {
	return func(_ context.Context, env *Env) entities.Outcome {
		info, err := env.Tools.Binaries.Inspect(env.Artifact.Path(env.Layout.Executable))
		if err != nil {
			return entities.Fail("malformed executable header: %v", err)
		}
		if !info.Native() {
			return entities.Fail("main executable is a %s run by %q, expected a native %s binary",
				info.Format, info.Interpreter, arch)
		}
		if !info.Supports(arch) {
			return entities.Fail("main executable is %s %s, expected %s", info.Format, info.Machine, arch)
		}
		return entities.Pass("%s %s", info.Format, info.Machine)
	}
}

func checkBinaryHardening(ctx context.Context, env *Env) entities.Outcome {
	binary := env.Artifact.Path(env.Layout.Executable)
	info, err := env.Tools.Binaries.Inspect(binary)
	if err != nil {
		return entities.Fail("malformed executable header: %v", err)
	}
	if info.Format != entities.FormatELF && info.Format != entities.FormatMachO {
		return entities.Skip("hardening analysis does not apply to %s files", info.Format)
	}

	verdict, err := services.NewHardeningService(env.Tools.Binaries).Evaluate(ctx, binary)
	if err != nil {
		return entities.Errorf("%v", err)
	}
	score := verdict.Analysis.SecurityScore
	if verdict.Blocked {
		return entities.Fail("hardening score %d%%, missing %s", score.Percentage, strings.Join(verdict.Missing, ", "))
	}
	if len(verdict.Missing) > 0 {
		return entities.Pass("hardening score %d%%, missing %s", score.Percentage, strings.Join(verdict.Missing, ", "))
	}
	return entities.Pass("hardening score %d%%", score.Percentage)
}

func checkManifestPresent(_ context.Context, env *Env) entities.Outcome {
	rel := env.Layout.Manifest
	if rel == "" {
		return entities.Skip("layout declares no manifest")
	}
	info, err := env.stat(rel)
	if err != nil {
		return entities.Fail("manifest %s is missing", rel)
	}
	if info.Size() == 0 {
		return entities.Fail("manifest %s is empty", rel)
	}
	return entities.Pass("%s present", rel)
}

func checkManifestSchema(_ context.Context, env *Env) entities.Outcome {
	manifest, _, err := env.Manifest()
	if err != nil {
		return entities.Fail("%s: %v", env.Layout.Manifest, err)
	}
	return entities.Pass("%s %s matches the manifest schema", manifest.Name, manifest.Version)
}

func checkManifestFields(_ context.Context, env *Env) entities.Outcome {
	manifest, _, err := env.Manifest()
	if err != nil {
		return entities.Errorf("manifest unavailable: %v", err)
	}

	var problems []string
	if product := env.Layout.Product; product != "" && manifest.Name != product {
		problems = append(problems, "name is "+quote(manifest.Name)+", expected "+quote(product))
	}
	if manifest.Tier != "" {
		if tier, err := entities.ParseTier(manifest.Tier); err != nil || tier != env.Profile.Tier {
			problems = append(problems, "tier is "+quote(manifest.Tier)+", detected "+quote(string(env.Profile.Tier)))
		}
	}
	if manifest.Architecture != "" {
		if arch, ok := entities.LookupArchitecture(manifest.Architecture); !ok || arch != env.Profile.Architecture {
			problems = append(problems, "architecture is "+quote(manifest.Architecture)+", detected "+quote(string(env.Profile.Architecture)))
		}
	}

	listed := make(map[string]bool)
	for _, name := range manifest.ComponentNames() {
		listed[name] = true
	}
	present := make(map[string]bool)
	for _, name := range env.Profile.Components {
		present[name] = true
		if !listed[name] {
			problems = append(problems, "components lacks bundled "+quote(name))
		}
	}
	for _, name := range manifest.ComponentNames() {
		if !present[name] {
			problems = append(problems, "components lists "+quote(name)+" which is not bundled")
		}
	}

	if len(problems) > 0 {
		return entities.Fail("manifest fields disagree: %s", strings.Join(problems, "; "))
	}
	return entities.Pass("manifest fields agree with %s/%s", env.Profile.Tier, env.Profile.Architecture)
}

func quote(s string) string {
	return `"` + s + `"`
}

func checkChecksumsPresent(_ context.Context, env *Env) entities.Outcome {
	rel := env.Layout.Checksums
	if rel == "" {
		return entities.Skip("layout declares no checksum file")
	}
	if _, err := env.stat(rel); err != nil {
		return entities.Fail("checksum file %s is missing", rel)
	}
	return entities.Pass("%s present", rel)
}

func checkChecksumsVerify(ctx context.Context, env *Env) entities.Outcome {
	entries, err := env.Tools.Checksums.ParseChecksumFile(env.Artifact.Path(env.Layout.Checksums))
	if err != nil {
		return entities.Fail("%v", err)
	}
	if len(entries) == 0 {
		return entities.Fail("%s lists no files", env.Layout.Checksums)
	}

	var mismatched []string
	var transcript strings.Builder
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return entities.Errorf("verification interrupted: %v", err)
		}
		rel := path.Clean(entry.Path)
		if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
			mismatched = append(mismatched, entry.Path)
			transcript.WriteString(entry.Path + ": escapes the artifact root\n")
			continue
		}
		if err := env.Tools.Checksums.VerifyChecksum(ctx, env.Artifact.Path(rel), entry.Sum); err != nil {
			mismatched = append(mismatched, rel)
			transcript.WriteString(rel + ": " + err.Error() + "\n")
		}
	}
	if len(mismatched) > 0 {
		return entities.Fail("%d of %d checksums do not match: %s",
			len(mismatched), len(entries), summarizeList(mismatched, 5)).WithOutput(transcript.String())
	}
	return entities.Pass("%d checksums verified", len(entries))
}

func checkChecksumsSignature(_ context.Context, env *Env) entities.Outcome {
	if env.Layout.Signature == "" {
		return entities.Skip("layout declares no checksum signature")
	}
	if env.Tools.Signatures == nil {
		return entities.Skip("no keyring configured")
	}
	sig := env.Artifact.Path(env.Layout.Signature)
	if _, err := os.Stat(sig); err != nil {
		return entities.Fail("signature %s is missing", env.Layout.Signature)
	}
	if err := env.Tools.Signatures.VerifySignatureFromFile(env.Artifact.Path(env.Layout.Checksums), sig); err != nil {
		return entities.Fail("%v", err)
	}
	return entities.Pass("signature verified against %d keys", env.Tools.Signatures.GetKeyringSize())
}

func checkRuntimePresent(_ context.Context, env *Env) entities.Outcome {
	dir := env.Layout.Runtime.Dir
	if dir == "" {
		return entities.Skip("layout declares no bundled runtime")
	}
	info, err := env.stat(dir)
	if err != nil || !info.IsDir() {
		return entities.Fail("runtime directory %s is missing", dir)
	}
	entries, err := os.ReadDir(env.Artifact.Path(dir))
	if err != nil {
		return entities.Fail("runtime directory %s is unreadable: %v", dir, err)
	}
	if len(entries) == 0 {
		return entities.Fail("runtime directory %s is empty", dir)
	}
	return entities.Pass("%s present", dir)
}

func checkRuntimeVersion(_ context.Context, env *Env) entities.Outcome {
	rel := env.Layout.Runtime.VersionFile
	if rel == "" {
		return entities.Skip("layout declares no runtime version file")
	}
	//nolint:gosec // G304: path is inside the artifact under test
	data, err := os.ReadFile(env.Artifact.Path(rel))
	if err != nil {
		return entities.Fail("runtime version file %s is missing", rel)
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return entities.Fail("runtime version file %s is empty", rel)
	}
	if manifest, _, err := env.Manifest(); err == nil && manifest.RuntimeVersion != "" &&
		strings.TrimPrefix(manifest.RuntimeVersion, "v") != strings.TrimPrefix(version, "v") {
		return entities.Fail("runtime version %s does not match manifest runtime_version %s", version, manifest.RuntimeVersion)
	}
	return entities.Pass("runtime %s", version)
}
