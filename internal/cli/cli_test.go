package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/analysis"
	"github.com/imyousuf/megaparser/internal/config"
	"github.com/imyousuf/megaparser/internal/export"
	"github.com/imyousuf/megaparser/internal/model"
)

// chdir switches into dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	})
}

// runCmd executes cmd with args and returns its standard output.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// newTestProject creates a project named demo with a few sources under src/
// and chdirs into it.
func newTestProject(t *testing.T, archive bool) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Project.Name = "demo"
	cfg.Output.Dir = "out"
	cfg.Archive.Enabled = archive
	if err := config.WriteConfig(cfg, filepath.Join(dir, config.ProjectDirName, config.ProjectConfigFile)); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "src", "Main.java"), "class Main {\n  void run(int x) {\n    if (x > 0 && x < 9) {}\n  }\n}\n")
	writeFile(t, filepath.Join(dir, "src", "web", "app.ts"), "export function f(a: number) {\n  return a ?? 0;\n}\n")
	writeFile(t, filepath.Join(dir, "src", "README.md"), "# Title\n\nSome text\n")

	chdir(t, dir)
	return dir
}

func TestOutputBaseName(t *testing.T) {
	tests := map[string]string{
		"":             "megaparser",
		"  ":           "megaparser",
		"demo":         "demo",
		"My Project":   "My_Project",
		"org/app":      "org_app",
		`team\service`: "team_service",
	}
	for in, want := range tests {
		if got := outputBaseName(in); got != want {
			t.Errorf("outputBaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExcludePatternsAddsOutputDir(t *testing.T) {
	tests := []struct {
		dir  string
		want []string
	}{
		{"out", []string{"**/.git/**", "out/**"}},
		{"./build/reports/", []string{"**/.git/**", "build/reports/**"}},
		{".", []string{"**/.git/**"}},
		{"../elsewhere", []string{"**/.git/**"}},
		{"", []string{"**/.git/**"}},
	}
	for _, tt := range tests {
		cfg := &config.Config{
			Watch:  config.WatchConfig{Exclude: []string{"**/.git/**"}},
			Output: config.OutputConfig{Dir: tt.dir},
		}
		if got := excludePatterns(cfg); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("excludePatterns(%q) = %v, want %v", tt.dir, got, tt.want)
		}
		if len(cfg.Watch.Exclude) != 1 {
			t.Errorf("excludePatterns modified the config: %v", cfg.Watch.Exclude)
		}
	}
}

func TestFormatMetric(t *testing.T) {
	tests := map[float64]string{
		0:    "0",
		12:   "12",
		2.5:  "2.50",
		1e10: "10000000000",
	}
	for in, want := range tests {
		if got := formatMetric(in); got != want {
			t.Errorf("formatMetric(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestOutsideDir(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(base, "out")
	keep := outsideDir(out)

	if keep(filepath.Join(out, "demo.json")) {
		t.Error("expected file inside the output directory to be rejected")
	}
	if keep(out) {
		t.Error("expected the output directory itself to be rejected")
	}
	if !keep(filepath.Join(base, "outside.java")) {
		t.Error("expected file outside the output directory to be kept")
	}
	if !keep(filepath.Join(base, "out2", "a.java")) {
		t.Error("expected sibling with a shared prefix to be kept")
	}
}

func TestAnalyzeWritesEveryExport(t *testing.T) {
	dir := newTestProject(t, false)

	stdout, err := runCmd(t, newAnalyzeCmd(), "src")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(stdout, "Analyzed:  3 files") {
		t.Errorf("expected summary of 3 files, got:\n%s", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "demo.json"))
	if err != nil {
		t.Fatalf("read SimpleJson output: %v", err)
	}
	files, err := export.DecodeSimpleJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	byName := make(map[string]model.FileObject)
	for _, f := range files {
		byName[f.Name] = f
	}
	if got := byName["Main.java"].Metrics["SonarComplexity"]; got != 3 {
		t.Errorf("expected Main.java complexity 3, got %v", got)
	}
	if _, ok := byName["README.md"].Metrics["SonarComplexity"]; ok {
		t.Error("markdown must not carry a complexity metric")
	}
	if byName["Main.java"].DebugInfo != nil {
		t.Error("debug info recorded without --debug")
	}

	var doc export.CodeChartaDocument
	data, err = os.ReadFile(filepath.Join(dir, "out", "demo.cc.json"))
	if err != nil {
		t.Fatalf("read CodeCharta output: %v", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ProjectName != "demo" {
		t.Errorf("expected project name demo, got %q", doc.ProjectName)
	}
}

func TestAnalyzeFlagsOverrideConfig(t *testing.T) {
	dir := newTestProject(t, false)

	_, err := runCmd(t, newAnalyzeCmd(), "src", "--exports", "SimpleJson", "--metrics", "RealLinesOfCode", "--debug", "--out", "alt")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "alt", "demo.cc.json")); !os.IsNotExist(err) {
		t.Error("disabled exporter must not write a document")
	}
	data, err := os.ReadFile(filepath.Join(dir, "alt", "demo.json"))
	if err != nil {
		t.Fatal(err)
	}
	files, err := export.DecodeSimpleJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if _, ok := f.Metrics["SonarComplexity"]; ok {
			t.Errorf("%s: disabled metric was computed", f.Path)
		}
		if _, ok := f.Metrics["RealLinesOfCode"]; !ok {
			t.Errorf("%s: enabled metric missing", f.Path)
		}
	}
}

func TestAnalyzeSkipsPreviousOutputs(t *testing.T) {
	newTestProject(t, false)

	if _, err := runCmd(t, newAnalyzeCmd(), "."); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	stdout, err := runCmd(t, newAnalyzeCmd(), ".")
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	// Neither out/ nor .megaparser/ is analyzed.
	if !strings.Contains(stdout, "Analyzed:  3 files") {
		t.Errorf("expected earlier exports to be excluded, got:\n%s", stdout)
	}
}

func TestAnalyzeWithNoFilesFails(t *testing.T) {
	dir := newTestProject(t, false)
	if err := os.Mkdir(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := runCmd(t, newAnalyzeCmd(), "empty")
	if !errors.Is(err, analysis.ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestArchiveAndConvert(t *testing.T) {
	dir := newTestProject(t, true)

	stdout, err := runCmd(t, newAnalyzeCmd(), "src")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	m := regexp.MustCompile(`Archived as ([0-9a-f]+)`).FindStringSubmatch(stdout)
	if m == nil {
		t.Fatalf("expected an archive id, got:\n%s", stdout)
	}
	id := m[1]

	stdout, err = runCmd(t, newArchiveCmd(), "list")
	if err != nil {
		t.Fatalf("archive list: %v", err)
	}
	if !strings.Contains(stdout, id) || !strings.Contains(stdout, "demo") {
		t.Errorf("archive list missing %s:\n%s", id, stdout)
	}

	stdout, err = runCmd(t, newArchiveCmd(), "show", id)
	if err != nil {
		t.Fatalf("archive show: %v", err)
	}
	if !strings.Contains(stdout, "src/Main.java (java)") {
		t.Errorf("archive show missing file line:\n%s", stdout)
	}

	stdout, err = runCmd(t, newConvertCmd(), "--archive", id, "--to", "CodeChartaJson", "-o", "-")
	if err != nil {
		t.Fatalf("convert archive: %v", err)
	}
	var doc export.CodeChartaDocument
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("convert output is not a CodeCharta document: %v", err)
	}
	want, err := os.ReadFile(filepath.Join(dir, "out", "demo.cc.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != strings.TrimSpace(string(want)) {
		t.Error("converting the archive must reproduce the analyzed CodeCharta document")
	}

	if _, err := runCmd(t, newArchiveCmd(), "delete", id); err != nil {
		t.Fatalf("archive delete: %v", err)
	}
	if _, err := runCmd(t, newArchiveCmd(), "show", id); err == nil {
		t.Error("expected show of a deleted archive to fail")
	}
}

func TestConvertFile(t *testing.T) {
	dir := newTestProject(t, false)
	if _, err := runCmd(t, newAnalyzeCmd(), "src", "--exports", "SimpleJson"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	source := filepath.Join(dir, "out", "demo.json")

	stdout, err := runCmd(t, newConvertCmd(), source, "--to", "CodeChartaJson")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	target := filepath.Join(dir, "out", "demo.cc.json")
	if !strings.Contains(stdout, target) {
		t.Errorf("expected %s to be reported, got %q", target, stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("converted document not written: %v", err)
	}

	if _, err := runCmd(t, newConvertCmd(), source, "--to", "SimpleJson"); err == nil {
		t.Error("expected converting onto the source file to be refused")
	}
	if _, err := runCmd(t, newConvertCmd(), source, "--to", "Nope", "-o", "-"); !errors.Is(err, analysis.ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}
	if _, err := runCmd(t, newConvertCmd(), "--to", "SimpleJson"); err == nil {
		t.Error("expected an error without a file or archive")
	}

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, "{not json")
	if _, err := runCmd(t, newConvertCmd(), bad, "--to", "CodeChartaJson", "-o", "-"); err == nil {
		t.Error("expected malformed input to fail")
	}
}

func TestMetricsCommand(t *testing.T) {
	dir := newTestProject(t, false)

	stdout, err := runCmd(t, newMetricsCmd(), filepath.Join(dir, "src", "Main.java"), "--debug")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	for _, want := range []string{"language: java", "RealLinesOfCode", "SonarComplexity", "Control Flow", "If (1)", "lines 3"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("metrics output missing %q:\n%s", want, stdout)
		}
	}

	stdout, err = runCmd(t, newMetricsCmd(), filepath.Join(dir, "src", "README.md"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if strings.Contains(stdout, "SonarComplexity") {
		t.Errorf("markdown must not report complexity:\n%s", stdout)
	}

	if _, err := runCmd(t, newMetricsCmd(), filepath.Join(dir, "missing.java")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestInitCreatesProject(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	stdout, err := runCmd(t, newInitCmd())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	configPath := filepath.Join(dir, config.ProjectDirName, config.ProjectConfigFile)
	if !strings.Contains(stdout, configPath) {
		t.Errorf("expected %s to be reported, got:\n%s", configPath, stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, config.ProjectDirName, config.EnvFile)); err != nil {
		t.Errorf(".env template not written: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project.Name != filepath.Base(dir) {
		t.Errorf("expected project name %q, got %q", filepath.Base(dir), cfg.Project.Name)
	}
	if !reflect.DeepEqual(cfg.Exports, config.DefaultConfig().Exports) {
		t.Errorf("unexpected exports %v", cfg.Exports)
	}

	if _, err := runCmd(t, newInitCmd()); err == nil {
		t.Error("expected a second init to fail")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	s := settingsFromConfig(cfg)
	s.Name = "  renamed "
	s.Workers = "8"
	s.Archive = true
	s.Exports = []string{export.SimpleJSON}
	s.applyTo(cfg)

	if cfg.Project.Name != "renamed" || cfg.Analysis.Workers != 8 || !cfg.Archive.Enabled {
		t.Errorf("settings not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Exports, []string{export.SimpleJSON}) {
		t.Errorf("unexpected exports %v", cfg.Exports)
	}
	if err := validateWorkers("65"); err == nil {
		t.Error("expected 65 workers to be rejected")
	}
	if err := validateWorkers("x"); err == nil {
		t.Error("expected a non-number to be rejected")
	}
}

func TestPluginsCommand(t *testing.T) {
	stdout, err := runCmd(t, newPluginsCmd())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"RealLinesOfCode", "SonarComplexity", "SimpleJson", ".cc.json"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("plugins output missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersionShort(t *testing.T) {
	stdout, err := runCmd(t, newVersionCmd(), "--short")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != Version+"\n" {
		t.Errorf("expected %q, got %q", Version+"\n", stdout)
	}
}
