package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ochairo/distcheck/internal/domain/checks"
	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/domain/services"
)

// DefaultDrainGrace bounds how long the engine waits for abandoned check bodies
const DefaultDrainGrace = 10 * time.Second

// sequentialCategories probe shared host state and run one check at a time
var sequentialCategories = map[entities.Category]bool{
	entities.CategoryEnvironment: true,
	entities.CategoryBuild:       true,
}

// EngineConfig tunes check execution
type EngineConfig struct {
	Timeout    time.Duration // overrides every definition when set
	Parallel   int           // workers for parallel categories, defaults to NumCPU
	WorkRoot   string        // parent of per-check working directories
	DrainGrace time.Duration
}

// ExecutionEngine runs selected checks with per-check timeouts and failure isolation
type ExecutionEngine struct {
	config EngineConfig
	logger interfaces.Logger
	bodies sync.WaitGroup
}

// NewExecutionEngine creates a new execution engine
func NewExecutionEngine(config EngineConfig, logger interfaces.Logger) *ExecutionEngine {
	if config.Parallel <= 0 {
		config.Parallel = runtime.NumCPU()
	}
	if config.DrainGrace <= 0 {
		config.DrainGrace = DefaultDrainGrace
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ExecutionEngine{config: config, logger: logger}
}

// ExecutionResult is the ordered outcome of a run
type ExecutionResult struct {
	Results   []entities.CheckResult
	Cancelled bool
}

// slot tracks one catalog entry through execution
type slot struct {
	check checks.Check
	done  chan struct{}
}

// Execute runs every selected check and returns one result per selection in declared
// order. Completion events are sent to events as checks finish; events may be nil.
// A check left out by the category filter still runs, and reports its own outcome, when
// a selected check depends on it.
// Cancelling ctx stops dispatch; in-flight checks run until their own timeout.
func (e *ExecutionEngine) Execute(ctx context.Context, env *checks.Env, registry *checks.Registry,
	selections []services.Selection, events chan<- entities.CheckEvent) ExecutionResult {
	total := len(selections)
	results := make([]entities.CheckResult, total)
	slots := make([]slot, total)
	index := make(map[string]int, total)

	emit := func(i int) {
		if events != nil {
			events <- entities.CheckEvent{Index: i, Total: total, Result: results[i]}
		}
	}

	for i, sel := range selections {
		index[sel.Definition.ID] = i
		check, ok := registry.Lookup(sel.Definition.ID)
		if !ok {
			check = checks.Check{CheckDefinition: sel.Definition}
		}
		slots[i] = slot{check: check, done: make(chan struct{})}
	}

	prerequisites := prerequisitesOf(selections, index)

	cancelled := false
	var wg sync.WaitGroup
	for _, category := range entities.AllCategories {
		width := e.config.Parallel
		if sequentialCategories[category] {
			width = 1
		}
		sem := make(chan struct{}, width)

		for i, sel := range selections {
			if sel.Definition.Category != category {
				continue
			}
			def := sel.Definition

			if !sel.Selected && !prerequisites[i] {
				results[i] = skipped(def, sel.SkipReason)
				close(slots[i].done)
				emit(i)
				continue
			}
			if !sel.Selected {
				e.logger.Debug("running filtered check as a prerequisite", interfaces.F("check", def.ID))
			}

			if !cancelled && ctx.Err() != nil {
				cancelled = true
			}
			if !cancelled {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					cancelled = true
				}
			}
			if cancelled {
				reason := entities.ReasonCancelled
				if !sel.Selected {
					reason = sel.SkipReason
				}
				results[i] = skipped(def, reason)
				close(slots[i].done)
				emit(i)
				continue
			}

			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				defer close(slots[i].done)

				results[i] = e.runWithDependencies(ctx, env, slots, index, results, i)
				emit(i)
			}(i)
		}

		// Categories run strictly in sequence
		wg.Wait()
	}

	e.drain()
	return ExecutionResult{Results: results, Cancelled: cancelled}
}

// prerequisitesOf marks checks excluded only by the category filter that a selected check
// depends on, directly or through another prerequisite. Dependencies are declared before
// their dependents, so one reverse pass reaches the whole chain.
func prerequisitesOf(selections []services.Selection, index map[string]int) []bool {
	needed := make([]bool, len(selections))
	for i := len(selections) - 1; i >= 0; i-- {
		if !selections[i].Selected && !needed[i] {
			continue
		}
		for _, dep := range selections[i].Definition.DependsOn {
			j, ok := index[dep]
			if ok && !selections[j].Selected && selections[j].SkipReason == entities.ReasonCategoryFilter {
				needed[j] = true
			}
		}
	}
	return needed
}

func (e *ExecutionEngine) runWithDependencies(ctx context.Context, env *checks.Env, slots []slot,
	index map[string]int, results []entities.CheckResult, i int) entities.CheckResult {
	def := slots[i].check.CheckDefinition
	for _, dep := range def.DependsOn {
		j, ok := index[dep]
		if !ok {
			return skipped(def, fmt.Sprintf("dependency %s did not pass", dep))
		}
		<-slots[j].done
		if results[j].Status != entities.StatusPass {
			return skipped(def, fmt.Sprintf("dependency %s did not pass", dep))
		}
	}
	return e.runCheck(ctx, env, slots[i].check)
}

func skipped(def entities.CheckDefinition, reason string) entities.CheckResult {
	return entities.CheckResult{
		ID:        def.ID,
		Category:  def.Category,
		Component: def.Component,
		Status:    entities.StatusSkipped,
		Message:   reason,
	}
}

func (e *ExecutionEngine) timeoutFor(def entities.CheckDefinition) time.Duration {
	switch {
	case e.config.Timeout > 0:
		return e.config.Timeout
	case def.Timeout > 0:
		return def.Timeout
	default:
		return checks.DefaultTimeout
	}
}

// runCheck executes one check body with its own deadline and panic isolation
func (e *ExecutionEngine) runCheck(ctx context.Context, env *checks.Env, check checks.Check) entities.CheckResult {
	def := check.CheckDefinition
	timeout := e.timeoutFor(def)
	result := entities.CheckResult{ID: def.ID, Category: def.Category, Component: def.Component}
	start := time.Now()

	if check.Run == nil {
		result.Status = entities.StatusError
		result.Message = "check has no implementation"
		return result
	}

	// Run cancellation only stops dispatch; the check keeps its own budget
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	checkEnv := env
	if def.Spawns {
		workDir, err := os.MkdirTemp(e.config.WorkRoot, "check-")
		if err != nil {
			result.Status = entities.StatusError
			result.Message = fmt.Sprintf("failed to create working directory: %v", err)
			return result
		}
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				e.logger.Warn("failed to remove working directory",
					interfaces.F("check", def.ID), interfaces.F("error", err))
			}
		}()
		checkEnv = env.WithWorkDir(workDir)
	}

	outcomes := make(chan entities.Outcome, 1)
	e.bodies.Add(1)
	go func() {
		defer e.bodies.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("check panicked",
					interfaces.F("check", def.ID),
					interfaces.F("panic", fmt.Sprint(r)))
				outcomes <- entities.Errorf("check panicked: %v", r).WithOutput(string(debug.Stack()))
			}
		}()
		outcomes <- check.Run(checkCtx, checkEnv)
	}()

	var outcome entities.Outcome
	select {
	case outcome = <-outcomes:
		if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
			outcome = entities.Errorf("timed out after %s", timeout).WithOutput(outcome.Output)
		}
	case <-checkCtx.Done():
		e.logger.Warn("check did not return before its deadline", interfaces.F("check", def.ID))
		outcome = entities.Errorf("timed out after %s", timeout)
	}

	result.Duration = time.Since(start)
	result.Status = outcome.Status
	result.Message = outcome.Message
	result.Output = outcome.Output

	switch outcome.Status {
	case entities.StatusPass, entities.StatusFail, entities.StatusError:
	case entities.StatusSkipped:
		if result.Message == "" {
			result.Message = "skipped by check"
		}
	default:
		result.Status = entities.StatusError
		result.Message = fmt.Sprintf("check returned invalid status %q", outcome.Status)
	}

	e.logger.Debug("check finished",
		interfaces.F("check", def.ID),
		interfaces.F("status", string(result.Status)),
		interfaces.F("duration", result.Duration))
	return result
}

// drain waits for abandoned check bodies, bounded by the drain grace
func (e *ExecutionEngine) drain() {
	finished := make(chan struct{})
	go func() {
		e.bodies.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(e.config.DrainGrace):
		e.logger.Warn("check bodies still running after drain grace", interfaces.F("grace", e.config.DrainGrace))
	}
}
