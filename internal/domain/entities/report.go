package entities

import "time"

// Exit codes returned by a run
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitError = 2
)

// Counts tallies results by status
type Counts struct {
	Total   int `json:"total"`
	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
}

// Add records one result status
func (c *Counts) Add(s Status) {
	c.Total++
	switch s {
	case StatusPass:
		c.Pass++
	case StatusFail:
		c.Fail++
	case StatusError:
		c.Error++
	case StatusSkipped:
		c.Skipped++
	}
}

// CategorySummary holds the counts for one category
type CategorySummary struct {
	Category Category `json:"category"`
	Counts
}

// Summary aggregates counts per category and overall
type Summary struct {
	Categories []CategorySummary `json:"categories"`
	Overall    Counts            `json:"overall"`
}

// Summarize computes per-category and overall counts in category order
func Summarize(results []CheckResult) Summary {
	byCategory := make(map[Category]*Counts, len(AllCategories))
	for _, c := range AllCategories {
		byCategory[c] = &Counts{}
	}

	var summary Summary
	for _, r := range results {
		if counts, ok := byCategory[r.Category]; ok {
			counts.Add(r.Status)
		}
		summary.Overall.Add(r.Status)
	}

	for _, c := range AllCategories {
		summary.Categories = append(summary.Categories, CategorySummary{Category: c, Counts: *byCategory[c]})
	}
	return summary
}

// ExitCode derives the process exit status from a summary
func (s Summary) ExitCode() int {
	switch {
	case s.Overall.Error > 0:
		return ExitError
	case s.Overall.Fail > 0:
		return ExitFail
	default:
		return ExitPass
	}
}

// Regression is a check that passed in the previous recorded run and does not pass now
type Regression struct {
	ID       string `json:"id"`
	Previous Status `json:"previous"`
	Current  Status `json:"current"`
}

// RunReport is the complete, ordered record of one execution
type RunReport struct {
	ReportID      string           `json:"report_id"`
	Tool          string           `json:"tool"`
	ToolVersion   string           `json:"tool_version"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Configuration RunConfiguration `json:"configuration"`
	Artifact      ArtifactInfo     `json:"artifact"`
	Profile       Profile          `json:"profile"`
	Results       []CheckResult    `json:"results"`
	Summary       Summary          `json:"summary"`
	Regressions   []Regression     `json:"regressions,omitempty"`
	Cancelled     bool             `json:"cancelled"`
	ExitCode      int              `json:"exit_code"`
}

// ArtifactInfo is the serializable view of the artifact under test
type ArtifactInfo struct {
	Name      string `json:"name"`
	Origin    string `json:"origin,omitempty"`
	Extracted bool   `json:"extracted"`
}
