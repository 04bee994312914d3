package checks

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// envProbePrefix marks values the harness injects when the host leaves a variable unset
const envProbePrefix = "distcheck-probe-"

func functionalChecks() []Check {
	def := func(id, description string) entities.CheckDefinition {
		return entities.CheckDefinition{
			ID:          id,
			Category:    entities.CategoryFunctional,
			Description: description,
			MinTier:     entities.TierMinimal,
			DependsOn:   []string{IDMainExecutable},
			Spawns:      true,
		}
	}

	return []Check{
		{def("functional.version", "Version invocation succeeds and reports the version"), checkVersionInvocation},
		{def("functional.help", "Help invocation succeeds"), checkHelpInvocation},
		{def("functional.startup", "Smoke invocation starts and exits cleanly"), checkStartup},
		{def("functional.startup-latency", "Smoke invocation completes within the startup budget"), checkStartupLatency},
		{def("functional.env-propagation", "Proxy and certificate variables reach the executable"), checkEnvPropagation},
		{def("functional.invalid-input", "Invalid arguments are rejected gracefully"), checkInvalidInput},
		{def("functional.missing-file", "Missing input files are reported gracefully"), checkMissingFile},
		{def("functional.launchers", "Launcher scripts start the executable"), checkLauncherInvocation},
	}
}

func (e *Env) mainExecutable() string {
	return e.Artifact.Path(e.Layout.Executable)
}

func checkVersionInvocation(ctx context.Context, env *Env) entities.Outcome {
	res := env.run(ctx, env.mainExecutable(), env.Layout.Invocation.VersionArgs, nil)
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
	if manifest, _, err := env.Manifest(); err == nil && manifest.Version != "" &&
		!strings.Contains(output, strings.TrimPrefix(manifest.Version, "v")) {
		return entities.Fail("version output does not mention manifest version %s", manifest.Version).
			WithOutput(res.Transcript())
	}
	return entities.Pass("%s", firstOutputLine(output))
}

func checkHelpInvocation(ctx context.Context, env *Env) entities.Outcome {
	res := env.run(ctx, env.mainExecutable(), env.Layout.Invocation.HelpArgs, nil)
	if outcome, failed := processFailure(ctx, res); failed {
		return outcome
	}
	if res.ExitCode != 0 {
		return entities.Fail("help invocation exited %d", res.ExitCode).WithOutput(res.Transcript())
	}
	if strings.TrimSpace(res.Stdout+res.Stderr) == "" {
		return entities.Fail("help invocation printed nothing").WithOutput(res.Transcript())
	}
	return entities.Pass("help printed %d bytes", len(res.Stdout)+len(res.Stderr))
}

func checkStartup(ctx context.Context, env *Env) entities.Outcome {
	res := env.run(ctx, env.mainExecutable(), env.Layout.Invocation.SmokeArgs, nil)
	if outcome, failed := processFailure(ctx, res); failed {
		return outcome
	}
	if res.Signaled {
		return entities.Fail("executable was killed by a signal").WithOutput(res.Transcript())
	}
	if res.ExitCode != 0 {
		return entities.Fail("smoke invocation exited %d", res.ExitCode).WithOutput(res.Transcript())
	}
	return entities.Pass("started and exited cleanly")
}

func checkStartupLatency(ctx context.Context, env *Env) entities.Outcome {
	budget := env.Layout.Invocation.StartupBudget
	if budget <= 0 {
		return entities.Skip("layout sets no startup budget")
	}
	res := env.run(ctx, env.mainExecutable(), env.Layout.Invocation.SmokeArgs, nil)
	if outcome, failed := processFailure(ctx, res); failed {
		return outcome
	}
	measured := fmt.Sprintf("startup took %s\n", res.Duration.Round(time.Millisecond))
	if res.Duration > budget {
		return entities.Fail("startup exceeded the %s budget", budget).WithOutput(measured + res.Transcript())
	}
	return entities.Pass("startup within the %s budget", budget).WithOutput(measured)
}

// probeValue is the value the executable should observe for a variable
func probeValue(env *Env, name string) string {
	if v := env.Config.ExtraEnv[name]; v != "" {
		return v
	}
	if v := env.Config.HostEnv[name]; v != "" {
		return v
	}
	return envProbePrefix + strings.ToLower(name)
}

func checkEnvPropagation(ctx context.Context, env *Env) entities.Outcome {
	inv := env.Layout.Invocation
	if len(inv.EnvProbeArgs) == 0 || len(inv.EnvVars) == 0 {
		return entities.Skip("layout declares no environment probe")
	}

	var missing []string
	var transcript strings.Builder
	for _, name := range inv.EnvVars {
		want := probeValue(env, name)
		res := env.run(ctx, env.mainExecutable(), expandArgs(inv.EnvProbeArgs, "{name}", name), map[string]string{name: want})
		if outcome, failed := processFailure(ctx, res); failed {
			return outcome
		}
		transcript.WriteString("=== " + name + " ===\n" + res.Transcript())
		if res.ExitCode != 0 || !strings.Contains(res.Stdout, want) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("executable does not see %s", strings.Join(missing, ", ")).WithOutput(transcript.String())
	}
	return entities.Pass("%d variables propagated", len(inv.EnvVars))
}

// rejectsGracefully expects a clean non-zero exit: no crash, no hang
func rejectsGracefully(ctx context.Context, env *Env, args []string, what string) entities.Outcome {
	res := env.run(ctx, env.mainExecutable(), args, nil)
	if outcome, failed := processFailure(ctx, res); failed {
		return outcome
	}
	if res.Signaled {
		return entities.Fail("executable crashed on %s", what).WithOutput(res.Transcript())
	}
	if res.ExitCode == 0 {
		return entities.Fail("executable accepted %s with exit code 0", what).WithOutput(res.Transcript())
	}
	if strings.TrimSpace(res.Stdout+res.Stderr) == "" {
		return entities.Fail("executable rejected %s without a diagnostic", what).WithOutput(res.Transcript())
	}
	return entities.Pass("rejected %s with exit code %d", what, res.ExitCode)
}

func checkInvalidInput(ctx context.Context, env *Env) entities.Outcome {
	args := env.Layout.Invocation.InvalidArgs
	if len(args) == 0 {
		return entities.Skip("layout declares no invalid invocation")
	}
	return rejectsGracefully(ctx, env, args, "invalid arguments")
}

func checkMissingFile(ctx context.Context, env *Env) entities.Outcome {
	args := env.Layout.Invocation.MissingFileArgs
	if len(args) == 0 {
		return entities.Skip("layout declares no missing-file invocation")
	}
	missing := filepath.Join(env.WorkDir, "distcheck-missing", "input.txt")
	return rejectsGracefully(ctx, env, expandArgs(args, "{missing}", missing), "a missing file")
}

func checkLauncherInvocation(ctx context.Context, env *Env) entities.Outcome {
	var posix []entities.LauncherSpec
	for _, l := range env.Layout.Launchers {
		if l.POSIX {
			posix = append(posix, l)
		}
	}
	if len(posix) == 0 {
		return entities.Skip("layout declares no POSIX launchers")
	}
	if runtime.GOOS == "windows" {
		return entities.Skip("POSIX launchers cannot run on windows")
	}

	var transcript strings.Builder
	for _, launcher := range posix {
		res := env.run(ctx, env.Artifact.Path(launcher.Path), env.Layout.Invocation.VersionArgs, nil)
		if outcome, failed := processFailure(ctx, res); failed {
			return outcome
		}
		transcript.WriteString("=== " + launcher.Path + " ===\n" + res.Transcript())
		if res.ExitCode != 0 {
			return entities.Fail("%s exited %d", launcher.Path, res.ExitCode).WithOutput(transcript.String())
		}
	}
	return entities.Pass("%d launchers started the executable", len(posix))
}

func firstOutputLine(output string) string {
	line, _, _ := strings.Cut(output, "\n")
	return strings.TrimSpace(line)
}
