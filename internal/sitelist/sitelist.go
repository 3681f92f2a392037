// Package sitelist reads and writes the newline-delimited site list that
// connects a scan to later lock, unlock and check runs.
package sitelist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Read returns the site paths in the list at path, in file order.
// Lines are trimmed and blank lines skipped. A missing file yields an
// empty list and no error; the caller decides whether that means "run a
// scan first".
func Read(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open site list: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads a site list from r.
func Parse(r io.Reader) ([]string, error) {
	sites := make([]string, 0)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sites = append(sites, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read site list: %w", err)
	}
	return sites, nil
}

// Exists reports whether a site list file is present at path.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Write replaces the list at path with sites, one per line.
// The parent directory is created if needed. The new content is written to a
// temporary file in the same directory and renamed over the old list, so a
// crash never leaves a truncated list behind.
func Write(path string, sites []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create site list directory: %w", err)
	}

	var buf bytes.Buffer
	for _, s := range sites {
		buf.WriteString(s)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, ".site-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create site list: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write site list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write site list: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // the list is not secret
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write site list: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace site list: %w", err)
	}
	return nil
}
