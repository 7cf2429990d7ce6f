// Package cli implements the command-line interface for megaparser.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imyousuf/megaparser/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "megaparser",
	Short: "megaparser - per-file code metrics and CodeCharta exports",
	Long: `megaparser reads a batch of source files, classifies each by language,
computes per-file metrics (lines of code, cognitive complexity) and exports
the results as a verbatim JSON document and a CodeCharta hierarchy.

Commands:
  init       Initialize a .megaparser/ project directory
  analyze    Analyze files and write every enabled export
  convert    Convert an archived result into another export format
  metrics    Show metrics for a single file
  watch      Re-run the analysis whenever files change
  archive    List, show or delete archived results
  plugins    List registered metric and export plugins
  config     View or edit project configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .megaparser/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	bindFlag := func(key, flag string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
	bindFlag("config_file", "config")

	// Add subcommands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newMetricsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newArchiveCmd())
	rootCmd.AddCommand(newPluginsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig loads and validates the project configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
