package detect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/safemac-dev/safemac/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDetectExactFile(t *testing.T) {
	t.Parallel()

	rule := model.DefaultRuleSet().ExactFiles[0]

	t.Run("clean site", func(t *testing.T) {
		t.Parallel()
		site := t.TempDir()
		writeFile(t, filepath.Join(site, "application", "extra", "queue.php"), "<?php")

		if hits := DetectExactFile(site, rule); len(hits) != 0 {
			t.Errorf("expected no hits, got %v", hits)
		}
	})

	t.Run("both planted files", func(t *testing.T) {
		t.Parallel()
		site := t.TempDir()
		active := filepath.Join(site, "application", "extra", "active.php")
		system := filepath.Join(site, "application", "extra", "system.php")
		writeFile(t, active, "<?php eval($_POST[1]);")
		writeFile(t, system, "<?php")

		hits := DetectExactFile(site, rule)
		if len(hits) != 2 {
			t.Fatalf("expected 2 hits, got %d", len(hits))
		}
		if hits[0].Path != active || hits[1].Path != system {
			t.Errorf("unexpected hit order: %v", hits)
		}
		if hits[0].Rule != "system-active" {
			t.Errorf("expected rule system-active, got %s", hits[0].Rule)
		}
	})
}

func TestQuarantinePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"php", "/srv/a/active.php", "/srv/a/active.lock"},
		{"only last extension", "/srv/a/x.php.php", "/srv/a/x.php.lock"},
		{"php in directory name", "/srv/site.php/a.php", "/srv/site.php/a.lock"},
		{"no extension", "/srv/a/README", "/srv/a/README.lock"},
		{"dotfile", "/srv/a/.htaccess", "/srv/a/.htaccess.lock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := QuarantinePath(tt.in); got != tt.want {
				t.Errorf("QuarantinePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuarantineRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "active.php")
	writeFile(t, path, "payload")

	target, err := Quarantine(path)
	if err != nil {
		t.Fatalf("Quarantine() error = %v", err)
	}
	if target != filepath.Join(dir, "active.lock") {
		t.Errorf("unexpected target %s", target)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original should be gone after quarantine")
	}

	if err := Restore(path); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("restored content = %q", got)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("quarantine file should be gone after restore")
	}
}

func TestQuarantineNeverOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "system.php")
	writeFile(t, path, "new")
	writeFile(t, filepath.Join(dir, "system.lock"), "old")

	if _, err := Quarantine(path); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(dir, "system.lock"))
	if string(got) != "old" {
		t.Errorf("existing quarantine file was modified: %q", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original should still exist: %v", err)
	}
}

func TestRestoreNeverOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "active.php")
	writeFile(t, path, "reinfected")
	writeFile(t, filepath.Join(dir, "active.lock"), "quarantined")

	if err := Restore(path); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
}

func TestQuarantineMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Quarantine(filepath.Join(t.TempDir(), "gone.php"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTargetExists) {
		t.Errorf("unexpected ErrTargetExists: %v", err)
	}
}
