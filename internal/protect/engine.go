package protect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/karrick/godirwalk"
	"github.com/safemac-dev/safemac/internal/attr"
	"github.com/safemac-dev/safemac/internal/model"
	"golang.org/x/sync/errgroup"
)

// Engine applies a ProtectionRule to site trees through an attr.Operator.
type Engine struct {
	op          attr.Operator
	rule        model.ProtectionRule
	patterns    []glob.Glob
	concurrency int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConcurrency caps the number of sites processed at once.
// Zero or a negative value means one goroutine per site.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// New creates an Engine. The rule is copied, so later changes by the caller
// have no effect.
func New(op attr.Operator, rule model.ProtectionRule, opts ...Option) (*Engine, error) {
	e := &Engine{
		op:   op,
		rule: rule.Clone(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	for _, p := range e.rule.LockFilePatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		e.patterns = append(e.patterns, g)
	}
	return e, nil
}

// Rule returns a copy of the engine's protection rule.
func (e *Engine) Rule() model.ProtectionRule {
	return e.rule.Clone()
}

// ProcessSites runs op against every site concurrently and waits for all of
// them. Results are returned in the order of paths.
//
// The attribute mechanism is checked once before any site is touched. After
// that, sites are independent: a failure or panic in one site is recorded in
// its result and never stops the others, and cancelling ctx does not stop
// sites that are already running.
func (e *Engine) ProcessSites(ctx context.Context, paths []string, op model.Operation) ([]model.SiteResult, error) {
	if op != model.OperationLock && op != model.OperationUnlock {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if err := e.op.Supported(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttributeUnavailable, err)
	}

	e.logger.Info("processing sites",
		"operation", op,
		"sites", len(paths),
		"operator", e.op.Name(),
	)

	results := make([]model.SiteResult, len(paths))

	// A plain Group: no derived context, so one site's error never cancels another.
	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}

	for i, path := range paths {
		g.Go(func() error {
			results[i] = e.runSafe(path, op)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // units never return errors; failures live in results

	return results, nil
}

// runSafe runs one site and converts a panic into a failed result.
func (e *Engine) runSafe(path string, op model.Operation) (result model.SiteResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("site processing panicked", "site", path, "panic", r)
			result = model.SiteResult{Site: path, Operation: op}
			result.Fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if op == model.OperationLock {
		return e.LockSite(path)
	}
	return e.UnlockSite(path)
}

// LockSite makes the core of the site immutable and leaves exclude
// directories writable. It keeps going past per-entry failures.
func (e *Engine) LockSite(root string) model.SiteResult {
	start := time.Now()
	result := model.SiteResult{Site: root, Operation: model.OperationLock, OK: true}

	root, err := resolveRoot(root)
	if err != nil {
		result.Fail(err)
		e.logger.Error("site directory does not exist", "site", result.Site, "error", err)
		return result
	}

	e.logger.Info("locking site", "site", root)

	for _, rel := range e.rule.LockDirs {
		dir := filepath.Join(root, rel)
		if !isRealDir(dir) {
			continue
		}
		n := e.applyTree(dir, e.op.SetImmutable, &result)
		result.Entries += n
		result.Locked = append(result.Locked, rel)
		e.logger.Debug("locked directory", "site", root, "dir", rel, "entries", n)
	}

	for _, file := range e.matchRootFiles(root, &result) {
		if err := e.op.SetImmutable(file); err != nil {
			result.RecordFailure(file, err)
			e.logger.Warn("lock failed", "path", file, "error", err)
			continue
		}
		result.Entries++
	}

	// Exclusion pass last: it must win over every lock above.
	for _, rel := range e.rule.ExcludeDirs {
		dir := filepath.Join(root, rel)
		if !isRealDir(dir) {
			continue
		}
		n := e.applyTree(dir, e.op.ClearImmutable, &result)
		result.Entries += n
		result.Kept = append(result.Kept, rel)
		e.logger.Debug("kept writable", "site", root, "dir", rel, "entries", n)
	}

	result.Elapsed = time.Since(start)
	e.logger.Info("site locked",
		"site", root,
		"entries", result.Entries,
		"failures", result.Failures,
	)
	return result
}

// UnlockSite clears the attribute on every entry of the site, root included.
func (e *Engine) UnlockSite(root string) model.SiteResult {
	start := time.Now()
	result := model.SiteResult{Site: root, Operation: model.OperationUnlock, OK: true}

	root, err := resolveRoot(root)
	if err != nil {
		result.Fail(err)
		e.logger.Error("site directory does not exist", "site", result.Site, "error", err)
		return result
	}

	e.logger.Info("unlocking site", "site", root)
	result.Entries = e.applyTree(root, e.op.ClearImmutable, &result)
	result.Elapsed = time.Since(start)

	e.logger.Info("site unlocked",
		"site", root,
		"entries", result.Entries,
		"failures", result.Failures,
	)
	return result
}

// applyTree calls fn on dir and every directory and regular file below it.
// Symlinks and special files are skipped. It returns the number of entries
// fn succeeded on; failures are recorded in result.
func (e *Engine) applyTree(dir string, fn func(string) error, result *model.SiteResult) int {
	applied := 0

	err := godirwalk.Walk(dir, &godirwalk.Options{
		FollowSymbolicLinks: false,
		Unsorted:            true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() && !de.IsRegular() {
				return nil
			}
			if err := fn(path); err != nil {
				result.RecordFailure(path, err)
				e.logger.Warn("attribute change failed", "path", path, "error", err)
				return nil
			}
			applied++
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			result.RecordFailure(path, err)
			e.logger.Warn("cannot walk entry", "path", path, "error", err)
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		result.RecordFailure(dir, err)
	}
	return applied
}

// matchRootFiles returns regular files directly in root matching any lock
// file pattern, each at most once, in directory order.
func (e *Engine) matchRootFiles(root string, result *model.SiteResult) []string {
	if len(e.patterns) == 0 {
		return nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		result.RecordFailure(root, err)
		return nil
	}

	files := make([]string, 0)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		for _, g := range e.patterns {
			if g.Match(entry.Name()) {
				files = append(files, filepath.Join(root, entry.Name()))
				break
			}
		}
	}
	return files
}

// resolveRoot follows symlinks in a site root so the walk starts from the
// real directory. Anything else below the root is never followed.
func resolveRoot(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil || !isRealDir(resolved) {
		return "", fmt.Errorf("%w: %s", model.ErrSiteNotFound, root)
	}
	return resolved, nil
}

// isRealDir reports whether path is a directory and not a symlink to one.
func isRealDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
