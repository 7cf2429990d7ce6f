package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/analysis"
	"github.com/imyousuf/megaparser/internal/metrics"
	"github.com/imyousuf/megaparser/internal/model"
)

// patternStyle fits the longest pattern name with its count.
var patternStyle = lipgloss.NewStyle().Width(36)

func newMetricsCmd() *cobra.Command {
	var (
		debug   bool
		enabled []string
	)

	cmd := &cobra.Command{
		Use:   "metrics <file>",
		Short: "Show metrics for a single file",
		Long: `Show every metric megaparser computes for a single source file.

With --debug, the complexity score is broken down into the patterns that
contributed to it, grouped by category, with the line of every match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]

			content, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			orch := analysis.New(analysis.Config{
				Verbose: verbose,
				Logger:  newLogger(cmd.ErrOrStderr()),
			})
			if len(enabled) > 0 {
				orch.SetMetricPlugins(enabled...)
			}
			orch.SetExportPlugins()

			input := model.FileInput{
				Path:    filepath.ToSlash(filePath),
				Name:    filepath.Base(filePath),
				Content: string(content),
				Size:    int64(len(content)),
			}
			if _, err := orch.Run([]model.FileInput{input}, debug); err != nil {
				return fmt.Errorf("calculate metrics: %w", err)
			}

			files := orch.RawOutput()
			if len(files) != 1 {
				return fmt.Errorf("calculate metrics: no result for %s", filePath)
			}
			f := files[0]

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Metrics for %s (language: %s)\n\n", filePath, f.Language)
			if len(f.Metrics) == 0 {
				fmt.Fprintln(out, "  (no metric supports this language)")
				return nil
			}
			fmt.Fprintln(out, renderMetricTable(orch.MetricPlugins(), f.Metrics))

			if debug {
				if d, ok := f.DebugInfo[metrics.SonarComplexity].(*metrics.ComplexityDebug); ok {
					fmt.Fprintln(out)
					printComplexityDebug(out, d)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "show the patterns behind the complexity score")
	cmd.Flags().StringSliceVar(&enabled, "metrics", nil, "metric plugins to run (default: all)")

	return cmd
}

// renderMetricTable renders values in plugin order; plugins without a value
// are left out.
func renderMetricTable(order []string, values map[string]float64) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Faint(true)).
		Headers("Metric", "Value").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Inherit(headerStyle)
			}
			if col == 1 {
				return s.Align(lipgloss.Right)
			}
			return s
		})

	for _, name := range order {
		v, ok := values[name]
		if !ok {
			continue
		}
		t.Row(name, formatMetric(v))
	}
	return t.String()
}

// formatMetric displays integer values without a decimal part.
func formatMetric(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// printComplexityDebug lists the matched patterns grouped by category in
// the order they were reported.
func printComplexityDebug(out io.Writer, d *metrics.ComplexityDebug) {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Complexity breakdown (%d)", d.TotalComplexity)))

	category := ""
	for _, p := range d.Patterns {
		if p.Category != category {
			category = p.Category
			fmt.Fprintln(out)
			printSection(out, category)
		}
		lines := make([]string, len(p.Lines))
		for i, l := range p.Lines {
			lines[i] = strconv.Itoa(l)
		}
		label := patternStyle.Render(fmt.Sprintf("%s (%d)", p.Name, p.Count))
		fmt.Fprintf(out, "    %s%s\n", label, valueStyle.Render("lines "+strings.Join(lines, ", ")))
	}
}
