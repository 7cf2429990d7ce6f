package cli

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imyousuf/megaparser/internal/config"
	"github.com/imyousuf/megaparser/internal/export"
	"github.com/imyousuf/megaparser/internal/metrics"
)

// projectSettings are the configuration values editable in the form.
type projectSettings struct {
	Name      string
	Metrics   []string
	Exports   []string
	OutputDir string
	Workers   string
	Debug     bool
	Archive   bool
}

func settingsFromConfig(cfg *config.Config) projectSettings {
	return projectSettings{
		Name:      cfg.Project.Name,
		Metrics:   slices.Clone(cfg.Metrics),
		Exports:   slices.Clone(cfg.Exports),
		OutputDir: cfg.Output.Dir,
		Workers:   strconv.Itoa(cfg.Analysis.Workers),
		Debug:     cfg.Analysis.Debug,
		Archive:   cfg.Archive.Enabled,
	}
}

// applyTo copies s into cfg. Workers was validated by the form.
func (s projectSettings) applyTo(cfg *config.Config) {
	cfg.Project.Name = strings.TrimSpace(s.Name)
	cfg.Metrics = s.Metrics
	cfg.Exports = s.Exports
	cfg.Output.Dir = strings.TrimSpace(s.OutputDir)
	if n, err := strconv.Atoi(strings.TrimSpace(s.Workers)); err == nil {
		cfg.Analysis.Workers = n
	}
	cfg.Analysis.Debug = s.Debug
	cfg.Archive.Enabled = s.Archive
}

// pluginOptions builds multi-select options with the ids in selected
// pre-selected.
func pluginOptions(ids, selected []string) []huh.Option[string] {
	opts := make([]huh.Option[string], len(ids))
	for i, id := range ids {
		opt := huh.NewOption(id, id)
		if slices.Contains(selected, id) {
			opt = opt.Selected(true)
		}
		opts[i] = opt
	}
	return opts
}

func validateWorkers(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("workers must be a number")
	}
	if n < 0 || n > 64 {
		return fmt.Errorf("workers must be between 0 and 64")
	}
	return nil
}

// runSettingsForm edits s in place. It reports false when the user
// cancelled or aborted the form.
func runSettingsForm(s *projectSettings, confirmTitle, affirmative string) (bool, error) {
	var confirm bool

	metricIDs := metrics.NewDefaultRegistry().IDs()
	exportIDs := export.NewDefaultRegistry("").IDs()

	form := huh.NewForm(
		// Group 1: Project Setup
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Description("Labels the CodeCharta root and the output file names").
				Value(&s.Name).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return fmt.Errorf("project name cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Output directory").
				Value(&s.OutputDir).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return fmt.Errorf("output directory cannot be empty")
					}
					return nil
				}),
		).Title("Project Setup"),

		// Group 2: Plugins
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Metric plugins").
				Options(pluginOptions(metricIDs, s.Metrics)...).
				Value(&s.Metrics),
			huh.NewMultiSelect[string]().
				Title("Export plugins").
				Options(pluginOptions(exportIDs, s.Exports)...).
				Value(&s.Exports).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return fmt.Errorf("select at least one exporter")
					}
					return nil
				}),
		).Title("Plugins"),

		// Group 3: Advanced Options
		huh.NewGroup(
			huh.NewInput().
				Title("Concurrent file reads").
				Description("0 or 1 reads files sequentially").
				Value(&s.Workers).
				Validate(validateWorkers),
			huh.NewConfirm().
				Title("Record debug information?").
				Description("Keeps the matched patterns behind every complexity score").
				Value(&s.Debug).
				Affirmative("Yes").
				Negative("No"),
			huh.NewConfirm().
				Title("Archive every analysis?").
				Description("Stores each run in .megaparser/archive.db for later conversion").
				Value(&s.Archive).
				Affirmative("Yes").
				Negative("No"),
		).Title("Advanced Options"),

		// Group 4: Confirm
		huh.NewGroup(
			huh.NewNote().
				Title("Summary").
				DescriptionFunc(func() string {
					return fmt.Sprintf(
						"Project:     %s\n"+
							"Metrics:     %s\n"+
							"Exports:     %s\n"+
							"Output dir:  %s\n"+
							"Workers:     %s\n"+
							"Debug:       %v\n"+
							"Archive:     %v",
						s.Name, joinOrNone(s.Metrics), joinOrNone(s.Exports),
						s.OutputDir, s.Workers, s.Debug, s.Archive,
					)
				}, s),
			huh.NewConfirm().
				Title(confirmTitle).
				Value(&confirm).
				Affirmative(affirmative).
				Negative("Cancel"),
		).Title("Confirm"),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirm, nil
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
