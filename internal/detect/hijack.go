package detect

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/safemac-dev/safemac/internal/model"
)

// HijackHit describes a configuration file whose content fails a hijack signature.
type HijackHit struct {
	// Rule is the signature name.
	Rule string

	// Path is the inspected file.
	Path string

	// Reason explains which marker check failed.
	Reason string

	// Original holds the file bytes as read.
	Original []byte

	// Digest is the SHA3-256 of Original.
	Digest string

	// BackupPath is set by ReplaceWithClean.
	BackupPath string
}

// DetectHijack inspects the first existing candidate of rule below site.
// It returns nil when no candidate exists or the content is clean.
func DetectHijack(site string, rule model.ContentHijackSignature) (*HijackHit, error) {
	path, ok := firstRegular(site, rule.RelPaths)
	if !ok {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContentRead, path, err)
	}

	reason := hijackReason(decodeLenient(raw), rule)
	if reason == "" {
		return nil, nil
	}

	return &HijackHit{
		Rule:     rule.Name,
		Path:     path,
		Reason:   reason,
		Original: raw,
		Digest:   Digest(raw),
	}, nil
}

func hijackReason(text string, rule model.ContentHijackSignature) string {
	if rule.MustContain != "" && !strings.Contains(text, rule.MustContain) {
		return fmt.Sprintf("missing marker %s", rule.MustContain)
	}
	if rule.MustNotContain != "" && strings.Contains(text, rule.MustNotContain) {
		return fmt.Sprintf("contains %s", rule.MustNotContain)
	}
	return ""
}

func firstRegular(site string, rels []string) (string, bool) {
	for _, rel := range rels {
		path := filepath.Join(site, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// ReplaceWithClean backs up the hijacked file to QuarantinePath(hit.Path)
// and overwrites it with rule.CleanReplacement. The backup is written with
// exclusive create and verified against hit.Digest before the original is
// touched. On success hit.BackupPath is set.
func ReplaceWithClean(hit *HijackHit, rule model.ContentHijackSignature) error {
	if hit == nil {
		return ErrNotHijacked
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(hit.Path); err == nil {
		mode = info.Mode().Perm()
	}

	backup := QuarantinePath(hit.Path)
	if err := writeExclusive(backup, hit.Original, mode); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrTargetExists, backup)
		}
		return fmt.Errorf("failed to write backup: %w", err)
	}

	written, err := os.ReadFile(backup)
	if err != nil {
		return fmt.Errorf("failed to verify backup: %w", err)
	}
	if Digest(written) != hit.Digest {
		return fmt.Errorf("%w: %s", ErrBackupMismatch, backup)
	}
	hit.BackupPath = backup

	if err := os.WriteFile(hit.Path, []byte(rule.CleanReplacement), mode); err != nil {
		return fmt.Errorf("failed to write clean content: %w", err)
	}
	return nil
}

func writeExclusive(path string, data []byte, mode fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	if _, err := bytes.NewReader(data).WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
