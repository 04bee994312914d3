package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ochairo/distcheck/internal/domain/checks"
	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/services"
	"github.com/ochairo/distcheck/internal/external-adapters/yaml"
)

func newListCommand() *cobra.Command {
	var (
		tier, arch, layoutPath string
		categories             []string
		showLayout             bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the check catalog and what a profile would run",
		Example: `  distcheck list --tier minimal --arch arm64
  distcheck list --show-layout > layout.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if showLayout {
				return printLayout(cmd, layoutPath)
			}

			filter := services.SelectionFilter{Tier: entities.TierFull}
			if tier != "" {
				t, err := entities.ParseTier(tier)
				if err != nil {
					return &exitError{code: entities.ExitError, err: err}
				}
				filter.Tier = t
			}
			if arch != "" {
				a, err := entities.ParseArchitecture(arch)
				if err != nil {
					return &exitError{code: entities.ExitError, err: err}
				}
				filter.Architecture = a
			} else if a, ok := entities.LookupArchitecture(runtime.GOARCH); ok {
				filter.Architecture = a
			}
			for _, raw := range categories {
				c, err := entities.ParseCategory(raw)
				if err != nil {
					return &exitError{code: entities.ExitError, err: err}
				}
				filter.Categories = append(filter.Categories, c)
			}

			layout, err := yaml.NewLayoutRepository().GetLayout(cmd.Context(), layoutPath)
			if err != nil {
				return &exitError{code: entities.ExitError, err: err}
			}
			registry, err := checks.NewRegistry(layout, nil)
			if err != nil {
				return &exitError{code: entities.ExitError, err: err}
			}
			selections := services.SelectChecks(registry.Definitions(), filter)

			_, _ = fmt.Fprintf(out, "Checks for tier %s, architecture %s (%d of %d selected):\n\n",
				filter.Tier, filter.Architecture, len(services.SelectedIDs(selections)), len(selections))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tMIN TIER\tARCH\tSELECTED")
			for _, s := range selections {
				def := s.Definition
				archs := "any"
				if len(def.Architectures) > 0 {
					names := make([]string, 0, len(def.Architectures))
					for _, a := range def.Architectures {
						names = append(names, string(a))
					}
					archs = strings.Join(names, ",")
				}
				selected := "yes"
				if !s.Selected {
					selected = "no (" + s.SkipReason + ")"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", def.ID, def.Category, def.MinTier, archs, selected)
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&tier, "tier", "", "Tier to select for (default full)")
	f.StringVar(&arch, "arch", "", "Architecture to select for (default host)")
	f.StringSliceVar(&categories, "category", nil, "Only these categories (repeatable)")
	f.StringVar(&layoutPath, "layout", "", "Layout YAML (default built-in)")
	f.BoolVar(&showLayout, "show-layout", false, "Print the layout YAML instead of the catalog")
	return cmd
}

func printLayout(cmd *cobra.Command, layoutPath string) error {
	data := yaml.DefaultLayoutYAML()
	if layoutPath != "" {
		//nolint:gosec // G304: operator-supplied layout file
		raw, err := os.ReadFile(layoutPath)
		if err != nil {
			return &exitError{code: entities.ExitError, err: fmt.Errorf("failed to read layout: %w", err)}
		}
		data = raw
	}
	_, err := cmd.OutOrStdout().Write(data)
	return err
}
