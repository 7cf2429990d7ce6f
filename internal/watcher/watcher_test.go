package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// startWatcher starts a watcher for cfg and gives it time to register its
// directories.
func startWatcher(t *testing.T, cfg WatcherConfig) <-chan Event {
	t.Helper()
	w, err := NewWatcher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	events, err := w.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	return events
}

// drain collects events until none arrive for wait or the channel closes.
func drain(events <-chan Event, wait time.Duration) []Event {
	var collected []Event
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, evt)
		case <-time.After(wait):
			return collected
		}
	}
}

func TestIgnoreRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []string
		base  string
		path  string
		isDir bool
		want  bool
	}{
		{"extension glob", []string{"*.class"}, "", "/repo/build/Main.class", false, true},
		{"other extension", []string{"*.class"}, "", "/repo/src/Main.java", false, false},
		{"component name", []string{"generated"}, "", "/repo/app/generated/Api.kt", false, true},
		{"double star file", []string{"**/*.min.js"}, "", "/repo/web/static/app.min.js", false, true},
		{"double star dir", []string{"**/dist/**"}, "", "/repo/web/dist/main.ts", false, true},
		{"anchored to base", []string{"src/*.tmp"}, "/repo", "/repo/src/a.tmp", false, true},
		{"anchored elsewhere", []string{"src/*.tmp"}, "/repo", "/repo/lib/src/a.tmp", false, false},
		{"outside base", []string{"*.tmp"}, "/repo", "/other/a.tmp", false, false},
		{"dir-only ancestor", []string{"out/"}, "", "/repo/out/app.json", false, true},
		{"dir-only file", []string{"out/"}, "", "/repo/out", false, false},
		{"dir-only dir", []string{"out/"}, "", "/repo/out", true, true},
		{"negation", []string{"*.log", "!keep.log"}, "", "/repo/keep.log", false, false},
		{"negation other", []string{"*.log", "!keep.log"}, "", "/repo/debug.log", false, true},
		{"last rule wins", []string{"!keep.log", "*.log"}, "", "/repo/keep.log", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewGitIgnoreMatcher(nil, nil)
			for _, r := range tt.rules {
				m.rules = append(m.rules, parsePattern(r, tt.base))
			}
			if got := m.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestParsePattern(t *testing.T) {
	r := parsePattern("!/build/", "/repo")
	want := ignoreRule{pattern: "build", negation: true, dirOnly: true, anchored: true, basePath: "/repo"}
	if r != want {
		t.Errorf("parsePattern = %+v, want %+v", r, want)
	}

	r = parsePattern("/docs/*.md", "")
	if !r.anchored || r.pattern != "docs/*.md" {
		t.Errorf("expected anchored docs/*.md, got %+v", r)
	}
}

func TestLoadPatternsReadsNestedGitignore(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		".gitignore":         "*.log\nbuild/\n# comment\n\n!keep.log\n",
		"web/.gitignore":     "*.gen.ts\n",
		"vendor/.gitignore":  "*.java\n",
		"web/src/app.ts":     "",
		"web/src/api.gen.ts": "",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	m := NewGitIgnoreMatcher([]string{root}, nil)
	if err := m.LoadPatterns(); err != nil {
		t.Fatal(err)
	}

	cases := map[string]bool{
		"app.log":            true,
		"keep.log":           false,
		"build/Main.class":   true,
		"web/src/api.gen.ts": true,
		"web/src/app.ts":     false,
		"api.gen.ts":         false, // web/.gitignore only applies below web/
		"src/Main.java":      false, // vendor/ is never scanned for rules
	}
	for rel, want := range cases {
		if got := m.Match(filepath.Join(root, filepath.FromSlash(rel)), false); got != want {
			t.Errorf("Match(%s) = %v, want %v", rel, got, want)
		}
	}
}

func TestExcludePatternsApplyPerRoot(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	m := NewGitIgnoreMatcher([]string{a, b}, []string{"**/node_modules/**", "out/**", "*.snap"})
	if err := m.LoadPatterns(); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{filepath.Join(a, "web", "node_modules", "react", "index.js"), true},
		{filepath.Join(b, "out", "demo.json"), true},
		{filepath.Join(b, "lib", "out", "demo.json"), false},
		{filepath.Join(a, "ui", "__snapshots__", "view.snap"), true},
		{filepath.Join(a, "web", "src", "App.tsx"), false},
	}
	for _, tt := range cases {
		if got := m.Match(tt.path, false); got != tt.want {
			t.Errorf("Match(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExcludeWinsOverNegation(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("!*.gen.ts\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewGitIgnoreMatcher([]string{tmpDir}, []string{"**/*.gen.ts"})
	if err := m.LoadPatterns(); err != nil {
		t.Fatal(err)
	}
	if !m.Match(filepath.Join(tmpDir, "src", "api.gen.ts"), false) {
		t.Error("exclude globs must not be re-included by .gitignore negation")
	}
	if m.Match(filepath.Join(tmpDir, "src", "api.ts"), false) {
		t.Error("expected api.ts to be kept")
	}
}

func TestIsSkipDir(t *testing.T) {
	for _, name := range []string{".git", "node_modules", "vendor", ".megaparser"} {
		if !IsSkipDir(name) {
			t.Errorf("expected %s to be skipped", name)
		}
	}
	if IsSkipDir("src") {
		t.Error("src must not be skipped")
	}
}

func TestRapidWritesAreDebounced(t *testing.T) {
	tmpDir := t.TempDir()
	source := filepath.Join(tmpDir, "Service.kt")
	if err := os.WriteFile(source, []byte("class Service"), 0644); err != nil {
		t.Fatal(err)
	}

	events := startWatcher(t, WatcherConfig{Paths: []string{tmpDir}})

	for i := 0; i < 5; i++ {
		body := "class Service { fun v() = " + string(rune('0'+i)) + " }"
		if err := os.WriteFile(source, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	collected := drain(events, 500*time.Millisecond)
	if len(collected) == 0 {
		t.Fatal("expected at least one debounced event, got none")
	}
	if len(collected) >= 5 {
		t.Errorf("expected debouncing to reduce events, got %d events for 5 writes", len(collected))
	}
	for _, evt := range collected {
		if evt.Path != source {
			t.Errorf("unexpected event path: %s", evt.Path)
		}
	}
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	tmpDir := t.TempDir()
	events := startWatcher(t, WatcherConfig{Paths: []string{tmpDir}})

	pkg := filepath.Join(tmpDir, "feature")
	if err := os.Mkdir(pkg, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	source := filepath.Join(pkg, "Feature.java")
	if err := os.WriteFile(source, []byte("class Feature {}"), 0644); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, evt := range drain(events, 500*time.Millisecond) {
		if evt.Path == pkg {
			t.Error("directory creation must not be reported as a file event")
		}
		if evt.Path == source {
			found = true
		}
	}
	if !found {
		t.Error("expected an event for a file in a newly created directory")
	}
}

func TestExcludedPathsEmitNothing(t *testing.T) {
	tmpDir := t.TempDir()
	generated := filepath.Join(tmpDir, "generated")
	if err := os.MkdirAll(generated, 0755); err != nil {
		t.Fatal(err)
	}

	events := startWatcher(t, WatcherConfig{
		Paths:           []string{tmpDir},
		ExcludePatterns: []string{"generated"},
	})

	if err := os.WriteFile(filepath.Join(generated, "Api.kt"), []byte("object Api"), 0644); err != nil {
		t.Fatal(err)
	}
	source := filepath.Join(tmpDir, "Main.java")
	if err := os.WriteFile(source, []byte("class Main {}"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, evt := range drain(events, 500*time.Millisecond) {
		if evt.Path != source {
			t.Errorf("got event for excluded path: %s", evt.Path)
		}
	}
}

func TestWatcherFilter(t *testing.T) {
	tmpDir := t.TempDir()
	events := startWatcher(t, WatcherConfig{
		Paths:  []string{tmpDir},
		Filter: func(path string) bool { return filepath.Ext(path) == ".kt" },
	})

	kept := filepath.Join(tmpDir, "A.kt")
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(kept, []byte("fun a() {}"), 0644); err != nil {
		t.Fatal(err)
	}

	collected := drain(events, 500*time.Millisecond)
	if len(collected) == 0 {
		t.Fatal("expected an event for A.kt")
	}
	for _, evt := range collected {
		if evt.Path != kept {
			t.Errorf("unexpected event path: %s", evt.Path)
		}
	}
}

func TestConvertOp(t *testing.T) {
	tests := []struct {
		op     fsnotify.Op
		want   EventOp
		wantOk bool
	}{
		{fsnotify.Create, Create, true},
		{fsnotify.Write, Write, true},
		{fsnotify.Remove, Remove, true},
		{fsnotify.Rename, Rename, true},
		{fsnotify.Chmod, 0, false},
	}
	for _, tt := range tests {
		got, ok := convertOp(tt.op)
		if ok != tt.wantOk || (ok && got != tt.want) {
			t.Errorf("convertOp(%v) = %v, %v; want %v, %v", tt.op, got, ok, tt.want, tt.wantOk)
		}
	}

	names := map[EventOp]string{Create: "Create", Write: "Write", Remove: "Remove", Rename: "Rename", EventOp(99): "Unknown"}
	for op, want := range names {
		if got := op.String(); got != want {
			t.Errorf("EventOp(%d).String() = %q, want %q", op, got, want)
		}
	}
}

func TestBatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event)
	batches := Batch(ctx, events, 50*time.Millisecond)

	now := time.Now()
	events <- Event{Path: "b.ts", Op: Write, Time: now}
	events <- Event{Path: "a.ts", Op: Create, Time: now}
	events <- Event{Path: "b.ts", Op: Remove, Time: now}

	select {
	case got := <-batches:
		if len(got) != 2 {
			t.Fatalf("expected 2 events, got %+v", got)
		}
		if got[0].Path != "a.ts" || got[1].Path != "b.ts" || got[1].Op != Remove {
			t.Errorf("unexpected batch %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for a batch")
	}

	events <- Event{Path: "c.ts", Op: Write, Time: now}
	close(events)

	var last []Event
	for b := range batches {
		last = b
	}
	if len(last) != 1 || last[0].Path != "c.ts" {
		t.Errorf("expected the final batch to be flushed on close, got %+v", last)
	}
}

func TestBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	batches := Batch(ctx, events, time.Hour)

	events <- Event{Path: "a.ts", Op: Write, Time: time.Now()}
	cancel()

	select {
	case _, ok := <-batches:
		if ok {
			t.Error("expected no batch after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Batch did not stop after cancellation")
	}
}
