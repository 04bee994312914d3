package entities

import (
	"fmt"
	"regexp"
	"time"
)

// Status is the outcome of a single check
type Status string

// Check outcomes
const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Skip reasons shared by the selector and the engine
const (
	ReasonTier           = "not required for tier"
	ReasonArchitecture   = "not applicable to architecture"
	ReasonCategoryFilter = "excluded by category filter"
	ReasonCancelled      = "run cancelled"
)

// Outcome is what a check body returns; the engine turns it into a CheckResult
type Outcome struct {
	Status  Status
	Message string
	Output  string // captured diagnostic output, persisted as a per-check log
}

// Pass builds a passing outcome
func Pass(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusPass, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failing outcome: the artifact does not meet an expectation
func Fail(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusFail, Message: fmt.Sprintf(format, args...)}
}

// Errorf builds an error outcome: the check itself could not complete
func Errorf(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Skip builds a skipped outcome; reason must be non-empty
func Skip(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusSkipped, Message: fmt.Sprintf(format, args...)}
}

// WithOutput attaches captured diagnostic output
func (o Outcome) WithOutput(output string) Outcome {
	o.Output = output
	return o
}

// CheckResult is the uniform record produced for every check in the catalog
type CheckResult struct {
	ID        string        `json:"id"`
	Category  Category      `json:"category"`
	Component string        `json:"component,omitempty"`
	Status    Status        `json:"status"`
	Duration  time.Duration `json:"duration_ns"`
	Message   string        `json:"message"`
	LogPath   string        `json:"log_path,omitempty"`
	Output    string        `json:"-"`
}

// LogsDir is the report-relative directory holding per-check logs
const LogsDir = "logs"

var unsafeLogChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LogPathFor returns the report-relative log path of a check
func LogPathFor(id string) string {
	return LogsDir + "/" + unsafeLogChars.ReplaceAllString(id, "_") + ".log"
}

// CheckEvent announces a finished check to progress listeners
type CheckEvent struct {
	Index  int // declared position in the catalog
	Total  int
	Result CheckResult
}
