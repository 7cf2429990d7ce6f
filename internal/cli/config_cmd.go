package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/config"
)

// Style definitions for config view.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	labelStyle = lipgloss.NewStyle().
			Faint(true).
			Width(18)
	valueStyle = lipgloss.NewStyle()
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit project configuration",
		Long: `View or edit megaparser project configuration.

By default, displays the effective configuration (file, .env and MEGAPARSER_*
overrides applied). Use 'config edit' to edit it interactively.`,
		RunE: runConfigView,
	}

	cmd.AddCommand(newConfigEditCmd())

	return cmd
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)

	// Title
	fmt.Fprintln(out, headerStyle.Render("megaparser Configuration"))
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 24)))
	fmt.Fprintln(out)

	// Project
	printSection(out, "Project")
	printKV(out, "Name", cfg.ProjectName())
	if cfg.ConfigDir != "" {
		printKV(out, "Config dir", cfg.ConfigDir)
	}
	fmt.Fprintln(out)

	// Paths
	printSection(out, "Paths")
	for _, p := range cfg.Paths {
		fmt.Fprintf(out, "    %s\n", p)
	}
	fmt.Fprintln(out)

	// Plugins
	printSection(out, "Plugins")
	printKV(out, "Metrics", joinOrNone(cfg.Metrics))
	printKV(out, "Exports", joinOrNone(cfg.Exports))
	fmt.Fprintln(out)

	// Analysis
	printSection(out, "Analysis")
	printKV(out, "Max file size", strconv.FormatInt(cfg.Analysis.MaxFileSize, 10)+" bytes")
	printKV(out, "Workers", strconv.Itoa(cfg.Analysis.Workers))
	printKV(out, "Read timeout", cfg.Analysis.ReadTimeout.String())
	printKV(out, "Debug", boolYesNo(cfg.Analysis.Debug))
	printKV(out, "Cache size", strconv.Itoa(cfg.Analysis.CacheSize))
	fmt.Fprintln(out)

	// Output
	printSection(out, "Output")
	printKV(out, "Directory", cfg.Output.Dir)
	printKV(out, "Archive", boolYesNo(cfg.Archive.Enabled))
	if dbPath := cfg.ResolveDBPath(""); dbPath != "" {
		printKV(out, "DB Path", dbPath)
	}
	fmt.Fprintln(out)

	// Excludes, including the output directory added at run time.
	printSection(out, "Excludes")
	for _, pattern := range excludePatterns(cfg) {
		fmt.Fprintf(out, "    %s\n", pattern)
	}
	printKV(out, "Watch debounce", cfg.Watch.Debounce.String())
	fmt.Fprintln(out)

	return nil
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "  %s\n", headerStyle.Render(title))
}

func printKV(out io.Writer, label, value string) {
	fmt.Fprintf(out, "    %s%s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func boolYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit project configuration interactively",
		Long:  `Edit megaparser project configuration using an interactive form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.ConfigDir == "" {
				return fmt.Errorf("no project config found; run 'megaparser init' first")
			}

			out := cmd.OutOrStdout()

			s := settingsFromConfig(cfg)
			ok, err := runSettingsForm(&s, "Save changes?", "Save")
			if err != nil {
				return fmt.Errorf("interactive config edit: %w", err)
			}
			if !ok {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			s.applyTo(cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			configPath := filepath.Join(cfg.ConfigDir, config.ProjectConfigFile)
			if err := config.WriteConfig(cfg, configPath); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
			return nil
		},
	}
}
