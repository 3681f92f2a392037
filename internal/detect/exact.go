package detect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/safemac-dev/safemac/internal/model"
)

// QuarantineExt replaces the extension of quarantined and backed up files.
const QuarantineExt = ".lock"

// Hit is a file matched by an exact-file signature.
type Hit struct {
	Rule string
	Path string
}

// DetectExactFile reports every path of rule that exists below site.
// Dangling symlinks count, a planted link is still planted.
func DetectExactFile(site string, rule model.ExactFileSignature) []Hit {
	hits := make([]Hit, 0)
	for _, rel := range rule.RelPaths {
		path := filepath.Join(site, filepath.FromSlash(rel))
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		hits = append(hits, Hit{Rule: rule.Name, Path: path})
	}
	return hits
}

// QuarantinePath returns the inert name for path: the extension is replaced
// by QuarantineExt, or QuarantineExt is appended when there is none.
func QuarantinePath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	if ext == base {
		ext = ""
	}
	return dir + strings.TrimSuffix(base, ext) + QuarantineExt
}

// Quarantine renames path to QuarantinePath(path) and returns the new name.
// An existing file at the target is never overwritten.
func Quarantine(path string) (string, error) {
	target := QuarantinePath(path)
	if err := renameNoReplace(path, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrTargetExists, target)
		}
		return "", fmt.Errorf("failed to quarantine %s: %w", path, err)
	}
	return target, nil
}

// Restore undoes Quarantine for the file originally at path.
// An existing file at path is never overwritten.
func Restore(path string) error {
	source := QuarantinePath(path)
	if err := renameNoReplace(source, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrTargetExists, path)
		}
		return fmt.Errorf("failed to restore %s: %w", path, err)
	}
	return nil
}

// renameChecked is the portable fallback: check then rename. It can lose a
// race with a concurrent writer creating the target.
func renameChecked(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: fs.ErrExist}
	}
	return os.Rename(from, to)
}
