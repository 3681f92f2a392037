package sitelist

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	t.Parallel()

	t.Run("missing file is an empty list", func(t *testing.T) {
		t.Parallel()
		sites, err := Read(filepath.Join(t.TempDir(), "site.txt"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sites == nil || len(sites) != 0 {
			t.Errorf("expected empty non-nil list, got %#v", sites)
		}
	})

	t.Run("trims lines and skips blanks", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "site.txt")
		content := "  /www/wwwroot/a  \n\n\t\n/www/wwwroot/b\r\n/www/wwwroot/c"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		sites, err := Read(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/www/wwwroot/a", "/www/wwwroot/b", "/www/wwwroot/c"}
		if !slices.Equal(sites, want) {
			t.Errorf("got %v, want %v", sites, want)
		}
	})

	t.Run("directory is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := Parse(strings.NewReader("")); err != nil {
			t.Fatalf("empty reader: %v", err)
		}
		if _, err := Read(t.TempDir()); err == nil {
			t.Error("expected an error reading a directory")
		}
	})
}

func TestWrite(t *testing.T) {
	t.Parallel()

	t.Run("creates parent and round trips", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "dir", "site.txt")
		want := []string{"/www/wwwroot/a", "/www/wwwroot/b"}

		if err := Write(path, want); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !Exists(path) {
			t.Fatal("expected list to exist")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "/www/wwwroot/a\n/www/wwwroot/b\n" {
			t.Errorf("unexpected content %q", data)
		}

		got, err := Read(path)
		if err != nil || !slices.Equal(got, want) {
			t.Errorf("Read = %v, %v", got, err)
		}
	})

	t.Run("overwrites wholesale", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "site.txt")
		if err := Write(path, []string{"/a", "/b", "/c"}); err != nil {
			t.Fatal(err)
		}
		if err := Write(path, []string{}); err != nil {
			t.Fatal(err)
		}
		got, err := Read(path)
		if err != nil || len(got) != 0 {
			t.Errorf("expected empty list after rewrite, got %v, %v", got, err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("temporary files left behind: %v", entries)
		}
	})
}
