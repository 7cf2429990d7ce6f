// Package config handles configuration loading and validation for megaparser.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ProjectDirName is the per-project configuration directory.
	ProjectDirName = ".megaparser"
	// ProjectConfigFile is the configuration file inside ProjectDirName.
	ProjectConfigFile = "config.yaml"
	// EnvFile holds environment overrides inside ProjectDirName.
	EnvFile = ".env"
	// EnvPrefix prefixes every environment override, e.g. MEGAPARSER_ANALYSIS_WORKERS.
	EnvPrefix = "MEGAPARSER"
	// DefaultDBFile is the archive database directory inside ProjectDirName.
	DefaultDBFile = "archive.db"
)

// Config holds all configuration for megaparser.
type Config struct {
	// Project contains project metadata.
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	// Paths lists the directories analyzed when none are given on the command line.
	Paths []string `mapstructure:"paths" yaml:"paths"`
	// Metrics lists the enabled metric plugin ids.
	Metrics []string `mapstructure:"metrics" yaml:"metrics"`
	// Exports lists the enabled export plugin ids.
	Exports []string `mapstructure:"exports" yaml:"exports"`
	// Analysis tunes ingestion and metric computation.
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	// Watch contains file watching configuration.
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`
	// Output controls where export documents are written.
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	// Archive controls persistence of analyzed batches.
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`

	// ConfigDir is the discovered .megaparser directory, empty when none.
	ConfigDir string `mapstructure:"-" yaml:"-"`
}

// ProjectConfig holds project metadata.
type ProjectConfig struct {
	// Name labels export documents and archives.
	Name string `mapstructure:"name" yaml:"name"`
}

// AnalysisConfig tunes a run.
type AnalysisConfig struct {
	MaxFileSize int64         `mapstructure:"max_file_size" yaml:"max_file_size"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	Debug       bool          `mapstructure:"debug" yaml:"debug"`
	CacheSize   int           `mapstructure:"cache_size" yaml:"cache_size"`
}

// WatchConfig holds file watching and exclusion configuration.
type WatchConfig struct {
	// Exclude lists doublestar glob patterns excluded from analysis and watching.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// Debounce is the quiet period before a change triggers a re-run.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// OutputConfig holds export output configuration.
type OutputConfig struct {
	// Dir receives one document per enabled exporter.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ArchiveConfig holds archive store configuration.
type ArchiveConfig struct {
	// Enabled stores every successful analyze run.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DBPath overrides the default database location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// DiscoverProjectDir walks up from start looking for a ProjectDirName
// directory and returns its path, or "" when there is none.
func DiscoverProjectDir(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load loads configuration from file, environment variables, and defaults.
// A .env file in the project directory is loaded into the process
// environment first; variables already set are not overridden.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	projectDir := DiscoverProjectDir(cwd)

	// Check if a specific config file was set via CLI flag (stored in global viper)
	globalViper := viper.GetViper()
	if configFile := globalViper.GetString("config_file"); configFile != "" {
		v.SetConfigFile(configFile)
		if projectDir == "" {
			projectDir = filepath.Dir(configFile)
		}
	} else if projectDir != "" {
		v.SetConfigFile(filepath.Join(projectDir, ProjectConfigFile))
	}

	if projectDir != "" {
		envPath := filepath.Join(projectDir, EnvFile)
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading %s: %w", envPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.ConfigDir = projectDir

	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Analysis.MaxFileSize <= 0 {
		return fmt.Errorf("analysis.max_file_size must be positive, got %d", c.Analysis.MaxFileSize)
	}
	if c.Analysis.Workers < 0 || c.Analysis.Workers > 64 {
		return fmt.Errorf("analysis.workers must be between 0 and 64, got %d", c.Analysis.Workers)
	}
	if c.Analysis.ReadTimeout <= 0 {
		return fmt.Errorf("analysis.read_timeout must be positive, got %s", c.Analysis.ReadTimeout)
	}
	if c.Analysis.CacheSize < 0 {
		return fmt.Errorf("analysis.cache_size must not be negative, got %d", c.Analysis.CacheSize)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	for i, id := range c.Metrics {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("metrics %d: plugin id is empty", i)
		}
	}
	for i, id := range c.Exports {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("exports %d: plugin id is empty", i)
		}
	}
	return nil
}

// ResolveDBPath picks the archive database path: an explicit flag value
// first, then archive.db_path, then DefaultDBFile inside the project
// directory. It returns "" when none applies.
func (c *Config) ResolveDBPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if c.Archive.DBPath != "" {
		return c.Archive.DBPath
	}
	if c.ConfigDir != "" {
		return filepath.Join(c.ConfigDir, DefaultDBFile)
	}
	return ""
}

// ProjectName returns the configured project name, falling back to the
// base name of the directory holding the project directory.
func (c *Config) ProjectName() string {
	if c.Project.Name != "" {
		return c.Project.Name
	}
	if c.ConfigDir != "" {
		return filepath.Base(filepath.Dir(c.ConfigDir))
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("project.name", d.Project.Name)
	v.SetDefault("paths", d.Paths)

	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("exports", d.Exports)

	v.SetDefault("analysis.max_file_size", d.Analysis.MaxFileSize)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.read_timeout", d.Analysis.ReadTimeout)
	v.SetDefault("analysis.debug", d.Analysis.Debug)
	v.SetDefault("analysis.cache_size", d.Analysis.CacheSize)

	v.SetDefault("watch.exclude", d.Watch.Exclude)
	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("output.dir", d.Output.Dir)

	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.db_path", d.Archive.DBPath)
}
