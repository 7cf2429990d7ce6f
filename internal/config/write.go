package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// WriteConfig serializes the given Config to YAML and writes it to path,
// creating parent directories as needed.
func WriteConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	content := "# megaparser configuration\n" + string(data)
	return os.WriteFile(path, []byte(content), 0644)
}

// envTemplate documents the environment overrides Load understands.
const envTemplate = `# megaparser environment overrides, loaded before config.yaml is read.
# Variables already set in the environment take precedence.
# MEGAPARSER_PROJECT_NAME=
# MEGAPARSER_ANALYSIS_WORKERS=8
# MEGAPARSER_ANALYSIS_DEBUG=false
# MEGAPARSER_OUTPUT_DIR=megaparser-out
# MEGAPARSER_ARCHIVE_ENABLED=false
`

// WriteEnvTemplate writes a commented .env template into dir unless one
// already exists. It reports whether a file was written.
func WriteEnvTemplate(dir string) (bool, error) {
	path := filepath.Join(dir, EnvFile)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(envTemplate), 0600); err != nil {
		return false, err
	}
	return true, nil
}

// DefaultConfig returns the configuration Load produces with no file and no
// environment overrides.
func DefaultConfig() *Config {
	return &Config{
		Paths:   []string{"."},
		Metrics: []string{"RealLinesOfCode", "SonarComplexity"},
		Exports: []string{"SimpleJson", "CodeChartaJson"},
		Analysis: AnalysisConfig{
			MaxFileSize: 5 * 1024 * 1024,
			ReadTimeout: 30 * time.Second,
		},
		Watch: WatchConfig{
			Exclude: []string{
				"**/node_modules/**",
				"**/.git/**",
				"**/vendor/**",
				"**/dist/**",
				"**/build/**",
			},
			Debounce: 500 * time.Millisecond,
		},
		Output: OutputConfig{Dir: "megaparser-out"},
	}
}
