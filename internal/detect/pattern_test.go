package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/safemac-dev/safemac/internal/logsink"
	"github.com/safemac-dev/safemac/internal/model"
)

var runTime = time.Date(2025, 1, 31, 14, 25, 1, 0, time.UTC)

func newSink(t *testing.T) *logsink.Sink {
	t.Helper()
	sink, err := logsink.New(t.TempDir(), runTime)
	if err != nil {
		t.Fatal(err)
	}
	return sink
}

func TestCompilePatterns(t *testing.T) {
	t.Parallel()

	t.Run("defaults compile in order", func(t *testing.T) {
		t.Parallel()
		patterns, err := CompilePatterns(model.DefaultPatterns())
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"navigator.platform", "base64", "hex_string", "appendChild", "Mac|Win"}
		if len(patterns) != len(want) {
			t.Fatalf("got %d patterns", len(patterns))
		}
		for i, p := range patterns {
			if p.Name != want[i] {
				t.Errorf("pattern %d = %s, want %s", i, p.Name, want[i])
			}
		}
	})

	tests := []struct {
		name string
		sigs []model.PatternSignature
	}{
		{"bad regex", []model.PatternSignature{{Name: "x", Regex: "("}}},
		{"empty name", []model.PatternSignature{{Regex: "x"}}},
		{"duplicate name", []model.PatternSignature{{Name: "x", Regex: "a"}, {Name: "x", Regex: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := CompilePatterns(tt.sigs); !errors.Is(err, ErrInvalidPattern) {
				t.Errorf("expected ErrInvalidPattern, got %v", err)
			}
		})
	}
}

func TestPatternCount(t *testing.T) {
	t.Parallel()

	patterns, err := CompilePatterns(model.DefaultPatterns())
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]Pattern)
	for _, p := range patterns {
		byName[p.Name] = p
	}

	tests := []struct {
		pattern string
		text    string
		want    int
	}{
		{"navigator.platform", "if (Navigator.Platform) {} navigator.platform", 2},
		{"navigator.platform", "navigatorXplatform", 0},
		{"base64", "atob('base64'); BASE64; Base64", 3},
		{"hex_string", `var s = "\x68\x65\x6C";`, 3},
		{"hex_string", `var s = "\X68";`, 0},
		{"hex_string", `\x6G`, 0},
		{"appendChild", "document.body.appendchild(s); x.appendChild(y)", 2},
		{"Mac|Win", "/mac|win/i.test(p) || /Mac|Win/", 2},
		{"Mac|Win", "Mac or Win", 0},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			t.Parallel()
			if got := byName[tt.pattern].Count(tt.text); got != tt.want {
				t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCandidateFiles(t *testing.T) {
	t.Parallel()

	site := t.TempDir()
	files := map[string]bool{
		"public/static/js/app.js":            true,
		"static/player.js":                   true,
		"template/default/html/index.html":   true,
		"template/a/template/nested.html":    true,
		"application/index/view/page.html":   false,
		"index.html":                         false,
		"public/static/css/site.css":         false,
		"template/default/js/home.js":        true,
		"template/default/html/index.htm":    false,
		"application/template.html":          false,
		"vendor/templates/readme/index.html": false,
	}
	for rel := range files {
		writeFile(t, filepath.Join(site, filepath.FromSlash(rel)), "x")
	}
	if err := os.MkdirAll(filepath.Join(site, "dir.js"), 0o750); err != nil {
		t.Fatal(err)
	}

	got, skipped, err := CandidateFiles(context.Background(), site)
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 {
		t.Errorf("unexpected skipped entries: %v", skipped)
	}

	seen := make(map[string]int)
	for _, path := range got {
		rel, _ := filepath.Rel(site, path)
		seen[filepath.ToSlash(rel)]++
	}
	for rel, want := range files {
		if want && seen[rel] != 1 {
			t.Errorf("%s: seen %d times, want once", rel, seen[rel])
		}
		if !want && seen[rel] != 0 {
			t.Errorf("%s should not be scanned", rel)
		}
	}
	if seen["dir.js"] != 0 {
		t.Error("directories must not be scanned")
	}
}

func TestCandidateFilesCancelled(t *testing.T) {
	t.Parallel()

	site := t.TempDir()
	writeFile(t, filepath.Join(site, "a.js"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := CandidateFiles(ctx, site); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCandidateFilesSymlinkedRoot(t *testing.T) {
	t.Parallel()

	site := t.TempDir()
	writeFile(t, filepath.Join(site, "static", "a.js"), "x")
	link := filepath.Join(t.TempDir(), "movie")
	if err := os.Symlink(site, link); err != nil {
		t.Fatal(err)
	}

	got, skipped, err := CandidateFiles(context.Background(), link)
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 {
		t.Errorf("unexpected skipped entries: %v", skipped)
	}
	want := []string{filepath.Join(link, "static", "a.js")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CandidateFiles() = %v, want %v", got, want)
	}
}

func TestScanPatternsUnreadableDir(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	site := filepath.Join(t.TempDir(), "site")
	writeFile(t, filepath.Join(site, "a.js"), "base64")
	locked := filepath.Join(site, "locked")
	writeFile(t, filepath.Join(locked, "b.js"), "base64")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o750) })

	result, err := ScanPatterns(context.Background(), site, model.DefaultPatterns(), newSink(t))
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", result.Summary.FilesScanned)
	}
	found := false
	for _, e := range result.Errors {
		if strings.HasPrefix(e, locked+": ") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error for %s, got %v", locked, result.Errors)
	}
}

// Scanning an unchanged site twice yields the same counts and logs.
func TestScanPatternsRepeatable(t *testing.T) {
	t.Parallel()

	site := filepath.Join(t.TempDir(), "site")
	writeFile(t, filepath.Join(site, "a.js"), "navigator.platform; base64 base64; appendChild")
	writeFile(t, filepath.Join(site, "b.js"), `"\x41\x42" Mac|Win`)
	writeFile(t, filepath.Join(site, "template", "default", "index.html"),
		`<script src="https://cdn.example/x.js"></script> base64`)

	scan := func() (ScanResult, map[string]string) {
		t.Helper()
		result, err := ScanPatterns(context.Background(), site, model.DefaultPatterns(), newSink(t))
		if err != nil {
			t.Fatal(err)
		}
		logs := make(map[string]string, len(result.Summary.Artifacts))
		for _, path := range result.Summary.Artifacts {
			b, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			logs[filepath.Base(path)] = string(b)
		}
		return result, logs
	}

	first, firstLogs := scan()
	second, secondLogs := scan()

	if len(first.Files) == 0 {
		t.Fatal("expected suspicious files")
	}
	if !reflect.DeepEqual(first.Files, second.Files) {
		t.Errorf("file hits differ:\n%+v\n%+v", first.Files, second.Files)
	}
	if !reflect.DeepEqual(firstLogs, secondLogs) {
		t.Errorf("logs differ:\n%v\n%v", firstLogs, secondLogs)
	}
}

// A single JS file with three hits of one pattern leaves exactly one log
// with one line; every other pattern log is pruned.
func TestScanPatternsSingleHit(t *testing.T) {
	t.Parallel()

	site := filepath.Join(t.TempDir(), "www.example.com")
	js := filepath.Join(site, "static", "js", "inject.js")
	writeFile(t, js, "a.appendChild(x);\nb.appendChild(y);\nc.appendChild(z);\n")

	sink := newSink(t)
	result, err := ScanPatterns(context.Background(), site, model.DefaultPatterns(), sink)
	if err != nil {
		t.Fatalf("ScanPatterns() error = %v", err)
	}

	if result.Summary.FilesScanned != 1 || result.Summary.SuspiciousFiles != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	wantDir := filepath.Join(sink.Dir(), "www.example.com")
	if result.Summary.LogDir != wantDir {
		t.Errorf("LogDir = %s, want %s", result.Summary.LogDir, wantDir)
	}

	entries, err := os.ReadDir(wantDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "appendChild.txt" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only appendChild.txt, got %v", names)
	}

	got, err := os.ReadFile(filepath.Join(wantDir, "appendChild.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "3 inject.js: " + js + "\n"; string(got) != want {
		t.Errorf("log = %q, want %q", got, want)
	}

	if len(result.Files) != 1 || result.Files[0].Total != 3 {
		t.Fatalf("unexpected file hits: %+v", result.Files)
	}
	for _, pc := range result.Files[0].Counts {
		if pc.Pattern == "appendChild" && pc.Count != 3 {
			t.Errorf("appendChild count = %d", pc.Count)
		}
		if pc.Pattern != "appendChild" && pc.Count != 0 {
			t.Errorf("%s count = %d, want 0", pc.Pattern, pc.Count)
		}
	}
}

func TestScanPatternsSortsByCount(t *testing.T) {
	t.Parallel()

	site := filepath.Join(t.TempDir(), "site")
	// Walk order is lexical: a, b, c, d.
	writeFile(t, filepath.Join(site, "a.js"), "base64")
	writeFile(t, filepath.Join(site, "b.js"), "base64 base64 base64")
	writeFile(t, filepath.Join(site, "c.js"), "base64")
	writeFile(t, filepath.Join(site, "d.js"), "base64 base64")
	writeFile(t, filepath.Join(site, "e.js"), "nothing here")

	sink := newSink(t)
	result, err := ScanPatterns(context.Background(), site, model.DefaultPatterns(), sink)
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.FilesScanned != 5 || result.Summary.SuspiciousFiles != 4 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if len(result.Summary.Artifacts) != 1 {
		t.Fatalf("artifacts = %v", result.Summary.Artifacts)
	}

	got, err := os.ReadFile(result.Summary.Artifacts[0])
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(got), "\n"), "\n")
	want := []string{
		"3 b.js: " + filepath.Join(site, "b.js"),
		"2 d.js: " + filepath.Join(site, "d.js"),
		"1 a.js: " + filepath.Join(site, "a.js"),
		"1 c.js: " + filepath.Join(site, "c.js"),
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestScanPatternsCleanSite(t *testing.T) {
	t.Parallel()

	site := filepath.Join(t.TempDir(), "clean")
	writeFile(t, filepath.Join(site, "static", "app.js"), "console.log('hello')")

	sink := newSink(t)
	result, err := ScanPatterns(context.Background(), site, model.DefaultPatterns(), sink)
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.SuspiciousFiles != 0 || len(result.Summary.Artifacts) != 0 {
		t.Errorf("expected a clean result, got %+v", result.Summary)
	}
	entries, err := os.ReadDir(result.Summary.LogDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected every empty log to be pruned, found %d files", len(entries))
	}
}

func TestScanExternalScripts(t *testing.T) {
	t.Parallel()

	site := filepath.Join(t.TempDir(), "site")
	page := filepath.Join(site, "template", "default", "index.html")
	writeFile(t, page, `<html><head>
<script src="/static/js/jquery.js"></script>
<script src="https://cdn.evil.example/x.js"></script>
<script src="//evil.example/y.js"></script>
<script>var a = 1;</script>
</head></html>`)
	outside := filepath.Join(site, "public", "index.html")
	writeFile(t, outside, `<script src="https://cdn.evil.example/x.js"></script>`)

	scanner, err := NewPatternScanner(model.DefaultPatterns(), WithExternalScripts(true))
	if err != nil {
		t.Fatal(err)
	}
	result, err := scanner.Scan(context.Background(), site, newSink(t))
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Scripts) != 1 {
		t.Fatalf("scripts = %+v", result.Scripts)
	}
	hit := result.Scripts[0]
	if hit.Path != page {
		t.Errorf("path = %s", hit.Path)
	}
	want := []string{"https://cdn.evil.example/x.js", "//evil.example/y.js"}
	if len(hit.Sources) != len(want) || hit.Sources[0] != want[0] || hit.Sources[1] != want[1] {
		t.Errorf("sources = %v, want %v", hit.Sources, want)
	}

	logFile := filepath.Join(result.Summary.LogDir, ExternalScriptLog+".txt")
	got, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "2 index.html: "+page+"\n" {
		t.Errorf("external script log = %q", got)
	}
}

func TestExternalScripts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"none", `<p>hi</p>`, 0},
		{"relative", `<script src="js/a.js"></script>`, 0},
		{"upper case scheme", `<SCRIPT SRC="HTTP://x.example/a.js"></SCRIPT>`, 1},
		{"self closing", `<script src="https://x.example/a.js"/>`, 1},
		{"img is ignored", `<img src="https://x.example/a.png">`, 0},
		{"data uri", `<script src="data:text/javascript,alert(1)"></script>`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExternalScripts(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %v, want %d sources", got, tt.want)
			}
		})
	}
}
