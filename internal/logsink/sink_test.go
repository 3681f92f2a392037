package logsink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var runTime = time.Date(2025, 1, 31, 14, 25, 1, 0, time.UTC)

func TestNew(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sink, err := New(root, runTime)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "20250131_142501")
	if sink.Dir() != want {
		t.Errorf("Dir() = %s, want %s", sink.Dir(), want)
	}
	if info, err := os.Stat(want); err != nil || !info.IsDir() {
		t.Errorf("run directory not created: %v", err)
	}
}

func TestOpenSiteCreatesEmptyLogs(t *testing.T) {
	t.Parallel()

	sink, err := New(t.TempDir(), runTime)
	if err != nil {
		t.Fatal(err)
	}
	siteLog, err := sink.OpenSite("/www/wwwroot/site.example/", []string{"base64", "Mac|Win", "base64"})
	if err != nil {
		t.Fatal(err)
	}

	if siteLog.Dir() != filepath.Join(sink.Dir(), "site.example") {
		t.Errorf("unexpected site dir %s", siteLog.Dir())
	}
	for _, name := range []string{"base64.txt", "Mac|Win.txt"} {
		info, err := os.Stat(filepath.Join(siteLog.Dir(), name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if info.Size() != 0 {
			t.Errorf("%s should be empty", name)
		}
	}
}

func TestOpenSiteSameBaseName(t *testing.T) {
	t.Parallel()

	sink, err := New(t.TempDir(), runTime)
	if err != nil {
		t.Fatal(err)
	}
	first, err := sink.OpenSite("/www/a/site", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sink.OpenSite("/home/b/site", nil)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first.Dir()) != "site" || filepath.Base(second.Dir()) != "site-2" {
		t.Errorf("got %s and %s", first.Dir(), second.Dir())
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"base64", "base64.txt"},
		{"Mac|Win", "Mac|Win.txt"},
		{"a/b", "a_b.txt"},
		{"navigator.platform", "navigator.platform.txt"},
	}
	for _, tt := range tests {
		if got := FileName(tt.in); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAppendUnknownPattern(t *testing.T) {
	t.Parallel()

	sink, err := New(t.TempDir(), runTime)
	if err != nil {
		t.Fatal(err)
	}
	siteLog, err := sink.OpenSite("/srv/site", []string{"base64"})
	if err != nil {
		t.Fatal(err)
	}
	if err := siteLog.Append("hex_string", 1, "/srv/site/a.js"); !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	sink, err := New(t.TempDir(), runTime)
	if err != nil {
		t.Fatal(err)
	}
	siteLog, err := sink.OpenSite("/srv/site", []string{"base64", "hex_string", "appendChild"})
	if err != nil {
		t.Fatal(err)
	}

	appends := []struct {
		pattern string
		count   int
		path    string
	}{
		{"base64", 1, "/srv/site/a.js"},
		{"base64", 12, "/srv/site/b.js"},
		{"appendChild", 2, "/srv/site/a.js"},
		{"base64", 1, "/srv/site/c.js"},
		{"base64", 3, "/srv/site/d.js"},
	}
	for _, a := range appends {
		if err := siteLog.Append(a.pattern, a.count, a.path); err != nil {
			t.Fatal(err)
		}
	}

	artifacts, err := siteLog.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Pattern != "base64" || artifacts[1].Pattern != "appendChild" {
		t.Errorf("artifacts out of pattern order: %s, %s", artifacts[0].Pattern, artifacts[1].Pattern)
	}

	if _, err := os.Stat(filepath.Join(siteLog.Dir(), "hex_string.txt")); !os.IsNotExist(err) {
		t.Error("empty log should be removed")
	}

	got, err := os.ReadFile(artifacts[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"12 b.js: /srv/site/b.js",
		"3 d.js: /srv/site/d.js",
		"1 a.js: /srv/site/a.js",
		"1 c.js: /srv/site/c.js",
	}, "\n") + "\n"
	if string(got) != want {
		t.Errorf("sorted log =\n%s\nwant\n%s", got, want)
	}
}

func TestSortLines(t *testing.T) {
	t.Parallel()

	lines := []string{
		"2 a",
		"garbage",
		"10 b",
		"2 c",
		"0 d",
		"10 e",
	}
	SortLines(lines)

	want := []string{"10 b", "10 e", "2 a", "2 c", "garbage", "0 d"}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("SortLines() = %q, want %q", lines, want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		count int
		path  string
		want  string
	}{
		{name: "plain", count: 3, path: "/srv/site/a.js", want: "3 a.js: /srv/site/a.js"},
		{name: "newline in name", count: 1, path: "/srv/site/x\n9 y.js", want: `1 x\x0a9 y.js: /srv/site/x\x0a9 y.js`},
		{name: "escape sequence in dir", count: 2, path: "/srv/\x1b[31m/b.js", want: `2 b.js: /srv/\x1b[31m/b.js`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatLine(tt.count, tt.path); got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

// A file name carrying a newline must stay one sorted line in the artifact.
func TestFinalizeControlCharacterName(t *testing.T) {
	t.Parallel()

	sink, err := New(t.TempDir(), runTime)
	if err != nil {
		t.Fatal(err)
	}
	siteLog, err := sink.OpenSite("/srv/site", []string{"base64"})
	if err != nil {
		t.Fatal(err)
	}
	if err := siteLog.Append("base64", 1, "/srv/site/a.js"); err != nil {
		t.Fatal(err)
	}
	if err := siteLog.Append("base64", 5, "/srv/site/evil\n0 x.js"); err != nil {
		t.Fatal(err)
	}

	artifacts, err := siteLog.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	want := []string{
		`5 evil\x0a0 x.js: /srv/site/evil\x0a0 x.js`,
		"1 a.js: /srv/site/a.js",
	}
	lines := artifacts[0].Lines
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
