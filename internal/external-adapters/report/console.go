// Package report renders run progress and results to the console and the output directory.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// selectionReasons are skip messages that mean the check was never meant to run
var selectionReasons = map[string]bool{
	entities.ReasonTier:           true,
	entities.ReasonArchitecture:   true,
	entities.ReasonCategoryFilter: true,
}

// Console prints incremental status lines and the final summary.
// Color output is enabled only when the writer is a terminal.
type Console struct {
	writer  io.Writer
	verbose bool
	mutex   sync.Mutex

	pass, fail, errored, skip, bold *color.Color
}

// NewConsole creates a console reporter writing to w
func NewConsole(w io.Writer, verbose bool) *Console {
	c := &Console{
		writer:  w,
		verbose: verbose,
		pass:    color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		errored: color.New(color.FgMagenta, color.Bold),
		skip:    color.New(color.FgHiBlack),
		bold:    color.New(color.Bold),
	}
	useColor := isTerminal(w)
	for _, col := range []*color.Color{c.pass, c.fail, c.errored, c.skip, c.bold} {
		if useColor {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// isTerminal reports whether w is a TTY that should receive colors
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) status(s entities.Status) string {
	label := fmt.Sprintf("%-5s", strings.ToUpper(string(s)))
	if s == entities.StatusSkipped {
		label = "SKIP "
	}
	switch s {
	case entities.StatusPass:
		return c.pass.Sprint(label)
	case entities.StatusFail:
		return c.fail.Sprint(label)
	case entities.StatusError:
		return c.errored.Sprint(label)
	default:
		return c.skip.Sprint(label)
	}
}

// Stream prints one line per completed check until events is closed. Checks skipped
// by selection are only shown in verbose mode.
func (c *Console) Stream(events <-chan entities.CheckEvent) {
	completed := 0
	for ev := range events {
		completed++
		r := ev.Result
		if r.Status == entities.StatusSkipped && selectionReasons[r.Message] && !c.verbose {
			continue
		}
		width := len(fmt.Sprint(ev.Total))

		c.mutex.Lock()
		line := fmt.Sprintf("[%*d/%d] %s %s", width, completed, ev.Total, c.status(r.Status), r.ID)
		if r.Status != entities.StatusSkipped {
			line += fmt.Sprintf(" (%s)", r.Duration.Round(time.Millisecond))
		}
		if r.Status != entities.StatusPass && r.Message != "" {
			line += ": " + r.Message
		}
		_, _ = fmt.Fprintln(c.writer, line)
		c.mutex.Unlock()
	}
}

// Summary prints non-passing results in declared order, the per-category table and the verdict
func (c *Console) Summary(report *entities.RunReport) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	w := c.writer
	var problems []entities.CheckResult
	for _, r := range report.Results {
		if r.Status == entities.StatusFail || r.Status == entities.StatusError {
			problems = append(problems, r)
		}
	}

	_, _ = fmt.Fprintln(w)
	if len(problems) > 0 {
		_, _ = fmt.Fprintln(w, c.bold.Sprint("Problems:"))
		for _, r := range problems {
			line := fmt.Sprintf("  %s %s: %s", c.status(r.Status), r.ID, r.Message)
			if r.LogPath != "" {
				line += " [" + r.LogPath + "]"
			}
			_, _ = fmt.Fprintln(w, line)
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(report.Regressions) > 0 {
		_, _ = fmt.Fprintln(w, c.fail.Sprint("Regressions since the previous run:"))
		for _, reg := range report.Regressions {
			_, _ = fmt.Fprintf(w, "  %s: %s -> %s\n", reg.ID, reg.Previous, reg.Current)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "%s %s (tier %s, architecture %s)\n", c.bold.Sprint("Summary for"),
		report.Artifact.Name, report.Profile.Tier, report.Profile.Architecture)
	_, _ = fmt.Fprint(w, renderTable(summaryRows(report.Summary), "  "))
	_, _ = fmt.Fprintln(w)

	switch report.ExitCode {
	case entities.ExitPass:
		_, _ = fmt.Fprintln(w, c.pass.Sprint("PASSED"))
	case entities.ExitFail:
		_, _ = fmt.Fprintln(w, c.fail.Sprintf("FAILED (exit %d)", report.ExitCode))
	default:
		_, _ = fmt.Fprintln(w, c.errored.Sprintf("ERROR (exit %d)", report.ExitCode))
	}
	if report.Cancelled {
		_, _ = fmt.Fprintln(w, c.skip.Sprint("run was cancelled, pending checks were skipped"))
	}
}
