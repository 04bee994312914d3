package report

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// writeMetrics exports the run as a node_exporter textfile
func writeMetrics(dir string, report *entities.RunReport) error {
	reg := prometheus.NewRegistry()

	checks := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "distcheck_checks",
		Help: "Number of checks by category and status in the last run.",
	}, []string{"category", "status"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "distcheck_check_duration_seconds",
		Help: "Wall-clock duration of each executed check.",
	}, []string{"check", "category", "status"})
	exitCode := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "distcheck_exit_code",
		Help: "Exit code of the last run.",
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "distcheck_last_run_timestamp_seconds",
		Help: "Unix time at which the last run finished.",
	})
	reg.MustRegister(checks, duration, exitCode, finished)

	for _, c := range report.Summary.Categories {
		category := string(c.Category)
		checks.WithLabelValues(category, string(entities.StatusPass)).Set(float64(c.Pass))
		checks.WithLabelValues(category, string(entities.StatusFail)).Set(float64(c.Fail))
		checks.WithLabelValues(category, string(entities.StatusError)).Set(float64(c.Error))
		checks.WithLabelValues(category, string(entities.StatusSkipped)).Set(float64(c.Skipped))
	}
	for _, r := range report.Results {
		if r.Status == entities.StatusSkipped {
			continue
		}
		duration.WithLabelValues(r.ID, string(r.Category), string(r.Status)).Set(r.Duration.Seconds())
	}
	exitCode.Set(float64(report.ExitCode))
	finished.Set(float64(report.FinishedAt.Unix()))

	if err := prometheus.WriteToTextfile(filepath.Join(dir, MetricsFileName), reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
