package gateways

import (
	"context"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// ReportPublisher renders run progress and the final report
type ReportPublisher interface {
	// Stream consumes completion events until the channel is closed
	Stream(events <-chan entities.CheckEvent)

	// Publish writes the final report to every sink. A failing sink does not stop
	// the others; the returned error wraps entities.ErrReportWriteFailed.
	Publish(report *entities.RunReport) error
}

// Bundler archives the output directory for upload
type Bundler interface {
	BundleDirectory(ctx context.Context, sourceDir, tarballPath string) error
}
