package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/config"
)

func newInitCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a .megaparser/ project directory",
		Long: `Initialize a megaparser project in the current directory.

Creates a .megaparser/ directory containing:
  config.yaml    Project configuration
  .env           Environment override template

Use --interactive to choose plugins and output options in a form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			projectDir := filepath.Join(cwd, config.ProjectDirName)
			if _, err := os.Stat(projectDir); err == nil {
				return fmt.Errorf("%s already exists; project is already initialized", projectDir)
			}

			cfg := config.DefaultConfig()
			cfg.Project.Name = filepath.Base(cwd)

			if interactive {
				s := settingsFromConfig(cfg)
				ok, err := runSettingsForm(&s, "Create project?", "Create")
				if err != nil {
					return fmt.Errorf("interactive init: %w", err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
				s.applyTo(cfg)
			}

			return writeProject(cmd.OutOrStdout(), projectDir, cfg)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "choose settings in an interactive form")

	return cmd
}

// writeProject creates projectDir with its config.yaml and .env template
// and prints the next steps.
func writeProject(out io.Writer, projectDir string, cfg *config.Config) error {
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	configPath := filepath.Join(projectDir, config.ProjectConfigFile)
	if err := config.WriteConfig(cfg, configPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	fmt.Fprintf(out, "Created %s\n", configPath)

	created, err := config.WriteEnvTemplate(projectDir)
	if err != nil {
		return fmt.Errorf("write .env file: %w", err)
	}
	if created {
		fmt.Fprintf(out, "Created %s\n", filepath.Join(projectDir, config.EnvFile))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Edit .megaparser/config.yaml to choose paths and plugins")
	fmt.Fprintln(out, "  2. Add to .gitignore:")
	fmt.Fprintln(out, "       .megaparser/archive.db/")
	fmt.Fprintln(out, "       .megaparser/.env")
	fmt.Fprintf(out, "       %s/\n", cfg.Output.Dir)
	fmt.Fprintln(out, "  3. Run 'megaparser analyze' to produce the exports")

	return nil
}
