package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// Options configures the report sinks
type Options struct {
	OutputDir string
	// Console receives progress and the summary; nil disables console output
	Console io.Writer
	Verbose bool
	Logger  interfaces.Logger
}

// Publisher fans a run out to the console and the files of the output directory
type Publisher struct {
	dir     string
	console *Console
	logger  interfaces.Logger
}

var _ gateways.ReportPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher for the given sinks
func NewPublisher(opts Options) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	p := &Publisher{dir: opts.OutputDir, logger: logger}
	if opts.Console != nil {
		p.console = NewConsole(opts.Console, opts.Verbose)
	}
	return p
}

// Stream prints progress until events is closed
func (p *Publisher) Stream(events <-chan entities.CheckEvent) {
	if p.console == nil {
		for range events {
		}
		return
	}
	p.console.Stream(events)
}

// Publish writes every sink. A failing sink is logged and does not stop the others;
// the combined error wraps ErrReportWriteFailed.
func (p *Publisher) Publish(report *entities.RunReport) error {
	var errs []error
	sink := func(name string, err error) {
		if err == nil {
			return
		}
		p.logger.Error("report sink failed", interfaces.F("sink", name), interfaces.F("error", err))
		errs = append(errs, fmt.Errorf("%w: %s: %v", entities.ErrReportWriteFailed, name, err))
	}

	if p.dir != "" {
		if err := os.MkdirAll(p.dir, 0750); err != nil {
			sink("output directory", err)
		} else {
			// Logs first so report.json carries the log paths
			sink("check logs", writeCheckLogs(p.dir, report.Results))
			sink(JSONFileName, writeJSON(p.dir, report))
			sink(TextFileName, writeText(p.dir, report))
			sink(MetricsFileName, writeMetrics(p.dir, report))
		}
	}

	if p.console != nil {
		p.console.Summary(report)
	}

	return errors.Join(errs...)
}
