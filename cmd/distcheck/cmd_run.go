package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/ochairo/distcheck/internal/config"
	"github.com/ochairo/distcheck/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/distcheck/internal/domain-orchestrators"
	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/external-adapters/history"
	"github.com/ochairo/distcheck/internal/external-adapters/logging"
	"github.com/ochairo/distcheck/internal/external-adapters/report"
	"github.com/ochairo/distcheck/internal/external-adapters/yaml"
)

func newRunCommand() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "run <artifact>",
		Short: "Verify an artifact directory or archive",
		Long: `Run every check that applies to the artifact's tier and architecture.

Tier and architecture are detected from the artifact name, its manifest, the
components it ships and its main executable; --tier and --arch override detection.
--category narrows the tier's checks and may be repeated.`,
		Example: `  distcheck run dist/app-2.1.0-complete-arm64.tar.gz
  distcheck run ./app --tier essential --arch x64 --category build --category structure
  distcheck run app.zip --timeout 90s --output reports --bundle`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.TimeoutSet = cmd.Flags().Changed("timeout")
			return runVerification(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.Tier, "tier", "", "Tier override (minimal, essential, complete, full)")
	f.StringVar(&flags.Architecture, "arch", "", "Architecture override (x64, arm64)")
	f.StringSliceVar(&flags.Categories, "category", nil, "Only run these categories (repeatable)")
	f.DurationVar(&flags.Timeout, "timeout", 0, "Timeout applied to every check (0 uses per-check defaults)")
	f.StringVarP(&flags.OutputDir, "output", "o", "", "Report directory (default \""+config.DefaultOutputDir+"\")")
	f.IntVar(&flags.Parallel, "parallel", 0, "Workers for parallel categories (default number of CPUs)")
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, "Show selection skips and debug logs")
	f.StringVar(&flags.Layout, "layout", "", "Layout YAML describing the distribution (default built-in)")
	f.StringVar(&flags.Keyring, "keyring", "", "OpenPGP keyring for checksum signature verification")
	f.StringVar(&flags.EnvFile, "env-file", "", "Dotenv file of extra variables passed to the artifact")
	f.StringVar(&flags.ExtractTo, "extract-to", "", "Extract archives here and keep the result")
	f.StringVar(&flags.History, "history", "", "SQLite file recording runs for regression reporting")
	f.BoolVar(&flags.Bundle, "bundle", false, "Write <output>.tar.gz of the report directory")

	return cmd
}

func runVerification(cmd *cobra.Command, artifactPath string, flags config.Flags) error {
	ctx := cmd.Context()

	defaults, err := config.LoadDefaults(ctx)
	if err != nil {
		return &exitError{code: entities.ExitError, err: err}
	}
	cfg, err := config.Build(artifactPath, flags, defaults)
	if err != nil {
		return &exitError{code: entities.ExitError, err: err}
	}

	// One run per output directory at a time
	lockPath := filepath.Clean(cfg.OutputDir) + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0750); err != nil {
		return &exitError{code: entities.ExitError, err: fmt.Errorf("failed to create output parent: %w", err)}
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return &exitError{code: entities.ExitError, err: fmt.Errorf("failed to lock output directory: %w", err)}
	}
	if !locked {
		return &exitError{code: entities.ExitError, err: fmt.Errorf("output directory %s is in use by another run", cfg.OutputDir)}
	}
	// The lock file is left in place so every run contends on the same inode
	//nolint:errcheck // Defer unlock
	defer lock.Unlock()

	logFile, err := logging.OpenFile(cfg.OutputDir)
	if err != nil {
		return &exitError{code: entities.ExitError, err: err}
	}
	//nolint:errcheck // Defer close on log file
	defer logFile.Close()

	logger := logging.New(logging.Options{
		Console: cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		File:    logFile,
	})
	logger.Info("run started",
		interfaces.F("artifact", cfg.ArtifactPath),
		interfaces.F("version", Version),
		interfaces.F("output", cfg.OutputDir))

	tools, err := gateways.NewToolkit(logger, cfg.KeyringFile)
	if err != nil {
		return &exitError{code: entities.ExitError, err: err}
	}

	deps := orchestrators.RunDependencies{
		Layouts: yaml.NewLayoutRepository(),
		Locator: gateways.NewArtifactLocator(logger),
		Tools:   tools,
		Reporter: report.NewPublisher(report.Options{
			OutputDir: cfg.OutputDir,
			Console:   cmd.OutOrStdout(),
			Verbose:   cfg.Verbose,
			Logger:    logger,
		}),
		Bundler: gateways.NewPackager(logger),
		Logger:  logger,
	}
	if cfg.HistoryFile != "" {
		store, err := history.NewStore(cfg.HistoryFile)
		if err != nil {
			return &exitError{code: entities.ExitError, err: err}
		}
		//nolint:errcheck // Defer close on history store
		defer store.Close()
		deps.History = store
	}

	orchestrator := orchestrators.NewRunOrchestrator(deps, orchestrators.RunOrchestratorConfig{ToolVersion: Version})
	rep, err := orchestrator.Run(ctx, cfg)
	if rep == nil {
		return &exitError{code: entities.ExitError, err: err}
	}
	if err != nil && !errors.Is(err, entities.ErrReportWriteFailed) {
		logger.Error("run finished with errors", interfaces.F("error", err))
	}
	if rep.ExitCode != entities.ExitPass {
		return &exitError{code: rep.ExitCode}
	}
	return nil
}
