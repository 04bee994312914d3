// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/distcheck/internal/domain/checks"
	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
	"github.com/ochairo/distcheck/internal/domain/interfaces/repositories"
	"github.com/ochairo/distcheck/internal/domain/services"
)

// ToolName identifies the harness in reports
const ToolName = "distcheck"

// reportNamespace seeds deterministic report ids
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ochairo/distcheck/report"))

// RunDependencies are the adapters a run is wired from. History and Bundler are optional.
type RunDependencies struct {
	Layouts  repositories.LayoutRepository
	Locator  gateways.ArtifactLocator
	Tools    checks.Toolkit
	Reporter gateways.ReportPublisher
	History  repositories.RunHistoryRepository
	Bundler  gateways.Bundler
	Logger   interfaces.Logger
}

// RunOrchestratorConfig holds settings that do not vary per run
type RunOrchestratorConfig struct {
	ToolVersion string
	DrainGrace  time.Duration
	// Clock defaults to time.Now
	Clock func() time.Time
}

// RunOrchestrator drives one verification run from artifact path to exit code
type RunOrchestrator struct {
	deps     RunDependencies
	detector *services.ProfileDetector
	config   RunOrchestratorConfig
}

// NewRunOrchestrator creates a new run orchestrator
func NewRunOrchestrator(deps RunDependencies, config RunOrchestratorConfig) *RunOrchestrator {
	if deps.Logger == nil {
		deps.Logger = &interfaces.NoOpLogger{}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.ToolVersion == "" {
		config.ToolVersion = "dev"
	}
	return &RunOrchestrator{
		deps:     deps,
		detector: services.NewProfileDetector(deps.Tools.Binaries),
		config:   config,
	}
}

// BundlePath is where the output directory archive is written
func BundlePath(outputDir string) string {
	return filepath.Clean(outputDir) + ".tar.gz"
}

// Run verifies the artifact described by cfg. A nil report means the run never reached
// execution (layout, locate or detection failure) and the caller should exit with
// entities.ExitError. A non-nil report is always returned together with any sink error
// wrapping entities.ErrReportWriteFailed; its ExitCode is authoritative.
func (o *RunOrchestrator) Run(ctx context.Context, cfg entities.RunConfiguration) (*entities.RunReport, error) {
	logger := o.deps.Logger
	started := o.config.Clock()

	// Step 1: Load the distribution layout
	layout, err := o.deps.Layouts.GetLayout(ctx, cfg.LayoutFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load layout: %w", err)
	}

	// Step 2: Resolve the artifact; extraction is undone on every exit path
	artifact, err := o.deps.Locator.Locate(ctx, cfg.ArtifactPath, gateways.LocateOptions{ExtractTo: cfg.ExtractTo})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := artifact.Close(); err != nil {
			logger.Warn("failed to clean up artifact", interfaces.F("error", err))
		}
	}()

	// Step 3: Detect tier and architecture
	profile, err := o.detector.Detect(artifact, layout, services.ProfileOverrides{
		Tier:         cfg.Tier,
		Architecture: cfg.Architecture,
	})
	if err != nil {
		if !errors.Is(err, entities.ErrProfileAmbiguous) {
			return nil, fmt.Errorf("failed to detect profile: %w", err)
		}
		logger.Warn("profile is ambiguous", interfaces.F("detail", err.Error()))
	}
	logger.Info("profile detected",
		interfaces.F("artifact", artifact.Name),
		interfaces.F("tier", string(profile.Tier)),
		interfaces.F("tier_source", profile.TierSource),
		interfaces.F("architecture", string(profile.Architecture)),
		interfaces.F("architecture_source", profile.ArchitectureSource))

	// Step 4: Build the catalog and select what runs
	registry, err := checks.NewRegistry(layout, profile.Components)
	if err != nil {
		return nil, fmt.Errorf("failed to build check catalog: %w", err)
	}
	selections := services.SelectChecks(registry.Definitions(), services.SelectionFilter{
		Tier:         profile.Tier,
		Architecture: profile.Architecture,
		Categories:   cfg.Categories,
	})
	logger.Debug("checks selected",
		interfaces.F("total", len(selections)),
		interfaces.F("selected", len(services.SelectedIDs(selections))))

	// Step 5: Execute with progress streamed to the reporter
	workRoot, err := os.MkdirTemp("", "distcheck-work-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workRoot) }()

	env := checks.NewEnv(artifact, layout, profile, cfg, o.deps.Tools, logger)
	engine := NewExecutionEngine(EngineConfig{
		Timeout:    cfg.Timeout,
		Parallel:   cfg.Parallel,
		WorkRoot:   workRoot,
		DrainGrace: o.config.DrainGrace,
	}, logger)

	execution := o.execute(ctx, engine, env, registry, selections)

	// Step 6: Build the report
	report := o.buildReport(cfg, artifact, profile, execution, started)

	// Reporting and history still happen after an interrupt
	finishCtx := context.WithoutCancel(ctx)
	historyKey := services.HistoryKey(productName(layout, artifact), profile)
	if o.deps.History != nil {
		previous, err := o.deps.History.LastStatuses(finishCtx, historyKey)
		if err != nil {
			logger.Warn("failed to read run history", interfaces.F("error", err))
		} else {
			report.Regressions = services.FindRegressions(previous, report.Results)
		}
	}

	// Step 7: Publish, record and bundle
	var errs []error
	if o.deps.Reporter != nil {
		if err := o.deps.Reporter.Publish(report); err != nil {
			errs = append(errs, err)
		}
	}

	if o.deps.History != nil {
		if err := o.deps.History.Record(finishCtx, historyKey, report); err != nil {
			logger.Warn("failed to record run history", interfaces.F("error", err))
		}
	}

	if cfg.Bundle && o.deps.Bundler != nil && cfg.OutputDir != "" {
		bundle := BundlePath(cfg.OutputDir)
		if err := o.deps.Bundler.BundleDirectory(finishCtx, cfg.OutputDir, bundle); err != nil {
			logger.Error("failed to bundle report", interfaces.F("error", err))
			errs = append(errs, fmt.Errorf("%w: bundle: %v", entities.ErrReportWriteFailed, err))
		} else {
			logger.Info("report bundled", interfaces.F("path", bundle))
		}
	}

	logger.Info("run finished",
		interfaces.F("report_id", report.ReportID),
		interfaces.F("exit_code", report.ExitCode),
		interfaces.F("cancelled", report.Cancelled),
		interfaces.F("duration", report.FinishedAt.Sub(report.StartedAt).String()))

	return report, errors.Join(errs...)
}

func (o *RunOrchestrator) execute(ctx context.Context, engine *ExecutionEngine, env *checks.Env,
	registry *checks.Registry, selections []services.Selection) ExecutionResult {
	if o.deps.Reporter == nil {
		return engine.Execute(ctx, env, registry, selections, nil)
	}

	events := make(chan entities.CheckEvent, len(selections))
	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		o.deps.Reporter.Stream(events)
	}()

	result := engine.Execute(ctx, env, registry, selections, events)
	close(events)
	<-streamed
	return result
}

func (o *RunOrchestrator) buildReport(cfg entities.RunConfiguration, artifact *entities.Artifact,
	profile entities.Profile, execution ExecutionResult, started time.Time) *entities.RunReport {
	for i := range execution.Results {
		if execution.Results[i].Output != "" {
			execution.Results[i].LogPath = entities.LogPathFor(execution.Results[i].ID)
		}
	}
	summary := entities.Summarize(execution.Results)
	exitCode := summary.ExitCode()
	if execution.Cancelled && exitCode == entities.ExitPass {
		// an interrupted run is never a clean verdict
		exitCode = entities.ExitError
	}

	report := &entities.RunReport{
		Tool:          ToolName,
		ToolVersion:   o.config.ToolVersion,
		StartedAt:     started.UTC(),
		FinishedAt:    o.config.Clock().UTC(),
		Configuration: cfg,
		Artifact: entities.ArtifactInfo{
			Name:      artifact.Name,
			Origin:    artifact.Origin,
			Extracted: artifact.Extracted(),
		},
		Profile:   profile,
		Results:   execution.Results,
		Summary:   summary,
		Cancelled: execution.Cancelled,
		ExitCode:  exitCode,
	}
	report.ReportID = reportID(report)
	return report
}

// reportID derives a stable id from everything in the report except timing
func reportID(report *entities.RunReport) string {
	var b strings.Builder
	cfg := report.Configuration
	fmt.Fprintf(&b, "%s\n%s\n%s\n", report.Tool, report.Artifact.Name, cfg.ArtifactPath)
	fmt.Fprintf(&b, "%s/%s\n", report.Profile.Tier, report.Profile.Architecture)
	for _, c := range cfg.Categories {
		fmt.Fprintf(&b, "category=%s\n", c)
	}
	fmt.Fprintf(&b, "timeout=%s\n", cfg.Timeout)
	for _, r := range report.Results {
		fmt.Fprintf(&b, "%s=%s\n", r.ID, r.Status)
	}
	return uuid.NewSHA1(reportNamespace, []byte(b.String())).String()
}

func productName(layout *entities.Layout, artifact *entities.Artifact) string {
	if layout.Product != "" {
		return layout.Product
	}
	return artifact.Name
}
