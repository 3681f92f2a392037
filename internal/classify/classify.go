package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
	"github.com/safemac-dev/safemac/internal/model"
)

// DefaultThreshold is the minimum score for a directory to be classified as a site.
const DefaultThreshold = 2

// DemoDirName is the directory name accepted by the demo override.
const DemoDirName = "demo"

// ErrNotDirectory is returned by Score when the candidate is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// DefaultMarkerDirs returns the directories that identify a MacCMS installation.
func DefaultMarkerDirs() []string {
	return []string{"application", "runtime", "thinkphp", "template"}
}

// DefaultMarkerFiles returns the files that identify a MacCMS installation.
func DefaultMarkerFiles() []string {
	return []string{"api.php", "install.php"}
}

// Classifier scores directories against marker features.
type Classifier struct {
	markerDirs   []string
	markerFiles  []string
	threshold    int
	demoOverride bool
	logger       *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used while scanning.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithThreshold sets the minimum score. Non-positive values are ignored.
func WithThreshold(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithMarkers replaces the marker directory and file sets.
// Empty slices keep the defaults.
func WithMarkers(dirs, files []string) Option {
	return func(c *Classifier) {
		if len(dirs) > 0 {
			c.markerDirs = append([]string(nil), dirs...)
		}
		if len(files) > 0 {
			c.markerFiles = append([]string(nil), files...)
		}
	}
}

// WithDemoOverride toggles the exception that accepts a directory named
// "demo" containing an application directory regardless of score.
// The exception exists for the bundled sample installation and is enabled
// by default.
func WithDemoOverride(enabled bool) Option {
	return func(c *Classifier) {
		c.demoOverride = enabled
	}
}

// New creates a Classifier with the default MacCMS markers.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		markerDirs:   DefaultMarkerDirs(),
		markerFiles:  DefaultMarkerFiles(),
		threshold:    DefaultThreshold,
		demoOverride: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Score evaluates dir and returns the resulting Site. The returned Site is
// populated even when the score is below the threshold.
func (c *Classifier) Score(dir string) (model.Site, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return model.Site{}, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return model.Site{}, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	site := model.Site{RootPath: dir}
	for _, name := range c.markerDirs {
		if exists(filepath.Join(dir, name)) {
			site.MatchedFeatures = append(site.MatchedFeatures, name)
		}
	}
	for _, name := range c.markerFiles {
		if exists(filepath.Join(dir, name)) {
			site.MatchedFeatures = append(site.MatchedFeatures, name)
		}
	}
	sort.Strings(site.MatchedFeatures)
	site.Score = len(site.MatchedFeatures)

	if c.demoOverride && c.isDemo(dir) {
		site.Override = true
	}
	return site, nil
}

// Classify reports whether dir is a MacCMS installation root.
func (c *Classifier) Classify(dir string) bool {
	site, err := c.Score(dir)
	if err != nil {
		return false
	}
	return c.accepts(site)
}

// Threshold returns the configured minimum score.
func (c *Classifier) Threshold() int {
	return c.threshold
}

func (c *Classifier) accepts(site model.Site) bool {
	return site.Override || site.Score >= c.threshold
}

// isDemo matches the bundled sample layout: demo/application.
func (c *Classifier) isDemo(dir string) bool {
	return filepath.Base(filepath.Clean(dir)) == DemoDirName && exists(filepath.Join(dir, "application"))
}

// hasMarkerDir reports whether dir has at least one marker directory child.
// Only such directories are worth classifying during a walk.
func (c *Classifier) hasMarkerDir(dir string) bool {
	for _, name := range c.markerDirs {
		if isDir(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

// ScanRoots walks every base path and returns the installation roots found,
// deduplicated and sorted by path.
//
// Once a directory is classified as a site its subtree is not descended, so
// nested or vendored copies are not reported separately. Missing base paths
// and unreadable subtrees are logged and skipped. Cancelling ctx aborts the
// walk and returns ctx.Err().
func (c *Classifier) ScanRoots(ctx context.Context, paths []string) ([]model.Site, error) {
	found := make(map[string]model.Site)

	for _, base := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !isDir(base) {
			c.logger.Warn("base path does not exist, skipping", "path", base)
			continue
		}

		c.logger.Info("scanning base path", "path", base)
		if err := c.walk(ctx, base, found); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("scan error, skipping base path", "path", base, "error", err)
		}
	}

	sites := make([]model.Site, 0, len(found))
	for _, s := range found {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].RootPath < sites[j].RootPath
	})
	return sites, nil
}

// walk descends base without following links below it. A base path that is
// itself a symlink is resolved first; sites are reported under base.
func (c *Classifier) walk(ctx context.Context, base string, found map[string]model.Site) error {
	root, err := filepath.EvalSymlinks(base)
	if err != nil {
		return err
	}

	return godirwalk.Walk(root, &godirwalk.Options{
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !de.IsDir() {
				return nil
			}
			path = underBase(base, root, path)
			if !c.hasMarkerDir(path) {
				return nil
			}

			site, err := c.Score(path)
			if err != nil || !c.accepts(site) {
				return nil
			}

			clean := filepath.Clean(path)
			site.RootPath = clean
			found[clean] = site
			c.logger.Debug("site found", "path", clean, "score", site.Score, "features", site.MatchedFeatures)
			return godirwalk.SkipThis
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if ctx.Err() != nil {
				return godirwalk.Halt
			}
			c.logger.Warn("cannot read directory, skipping", "path", underBase(base, root, path), "error", err)
			return godirwalk.SkipNode
		},
	})
}

// underBase maps path, found while walking the resolved root, back below base.
func underBase(base, root, path string) string {
	if base == root {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.Join(base, rel)
}

// SitePaths extracts the root paths from sites, preserving order.
func SitePaths(sites []model.Site) []string {
	paths := make([]string, len(sites))
	for i, s := range sites {
		paths[i] = s.RootPath
	}
	return paths
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
