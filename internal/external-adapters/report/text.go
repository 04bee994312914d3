package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// renderTable left-aligns columns separated by two spaces. The last column is not padded.
func renderTable(rows [][]string, indent string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(indent)
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)+2))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func summaryRows(s entities.Summary) [][]string {
	rows := [][]string{{"CATEGORY", "TOTAL", "PASS", "FAIL", "ERROR", "SKIPPED"}}
	add := func(name string, c entities.Counts) {
		rows = append(rows, []string{
			name,
			fmt.Sprint(c.Total), fmt.Sprint(c.Pass), fmt.Sprint(c.Fail), fmt.Sprint(c.Error), fmt.Sprint(c.Skipped),
		})
	}
	for _, c := range s.Categories {
		add(string(c.Category), c.Counts)
	}
	add("overall", s.Overall)
	return rows
}

func heading(b *strings.Builder, title string) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", len(title)) + "\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// RenderText produces the human-readable report
func RenderText(report *entities.RunReport) string {
	var b strings.Builder
	b.WriteString("distcheck report\n")
	b.WriteString("================\n\n")

	artifact := report.Artifact.Name
	if report.Artifact.Extracted {
		artifact += " (extracted from " + report.Artifact.Origin + ")"
	}
	components := strings.Join(report.Profile.Components, ", ")
	tier := fmt.Sprintf("%s (from %s)", report.Profile.Tier, report.Profile.TierSource)
	if report.Profile.Ambiguous {
		tier += ", ambiguous"
	}

	cfg := report.Configuration
	categories := make([]string, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories = append(categories, string(c))
	}
	timeout := "per check"
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout.String()
	}

	b.WriteString(renderTable([][]string{
		{"Report ID:", report.ReportID},
		{"Tool:", report.Tool + " " + report.ToolVersion},
		{"Started:", report.StartedAt.UTC().Format(time.RFC3339)},
		{"Finished:", report.FinishedAt.UTC().Format(time.RFC3339)},
		{"Artifact:", artifact},
		{"Tier:", tier},
		{"Architecture:", fmt.Sprintf("%s (from %s)", report.Profile.Architecture, report.Profile.ArchitectureSource)},
		{"Components:", orNone(components)},
		{"Categories:", orNone(strings.Join(categories, ", "))},
		{"Timeout:", timeout},
		{"Exit code:", fmt.Sprint(report.ExitCode)},
	}, ""))
	if report.Cancelled {
		b.WriteString("\nThe run was cancelled; checks that had not started are skipped.\n")
	}

	b.WriteString("\n")
	heading(&b, "Results")
	rows := [][]string{{"STATUS", "ID", "DURATION", "MESSAGE"}}
	for _, r := range report.Results {
		message := r.Message
		if r.LogPath != "" {
			message += " [" + r.LogPath + "]"
		}
		duration := "-"
		if r.Status != entities.StatusSkipped {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{string(r.Status), r.ID, duration, message})
	}
	b.WriteString(renderTable(rows, ""))

	b.WriteString("\n")
	heading(&b, "Summary")
	b.WriteString(renderTable(summaryRows(report.Summary), ""))

	if len(report.Regressions) > 0 {
		b.WriteString("\n")
		heading(&b, "Regressions")
		regs := [][]string{{"ID", "PREVIOUS", "CURRENT"}}
		for _, r := range report.Regressions {
			regs = append(regs, []string{r.ID, string(r.Previous), string(r.Current)})
		}
		b.WriteString(renderTable(regs, ""))
	}
	return b.String()
}
