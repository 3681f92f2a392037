package detect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/safemac-dev/safemac/internal/logsink"
	"github.com/safemac-dev/safemac/internal/model"
)

// ExternalScriptLog is the log name used for external script hits.
const ExternalScriptLog = "external_script"

// TemplateDirName is the directory name below which markup files are scanned.
const TemplateDirName = "template"

// Pattern is a compiled pattern signature.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// Count returns the number of non-overlapping matches in text.
func (p Pattern) Count(text string) int {
	return len(p.re.FindAllStringIndex(text, -1))
}

// CompilePatterns compiles sigs in order. Matching is case-insensitive
// unless a signature sets CaseSensitive.
func CompilePatterns(sigs []model.PatternSignature) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(sigs))
	seen := make(map[string]bool, len(sigs))

	for _, sig := range sigs {
		if sig.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidPattern)
		}
		if seen[sig.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidPattern, sig.Name)
		}
		seen[sig.Name] = true

		expr := sig.Regex
		if !sig.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPattern, sig.Name, err)
		}
		patterns = append(patterns, Pattern{Name: sig.Name, re: re})
	}
	return patterns, nil
}

// FileHits holds the pattern counts of one suspicious file.
type FileHits struct {
	Path   string
	Counts []model.PatternCount
	Total  int
}

// ScriptHit is a template that loads scripts from another origin.
type ScriptHit struct {
	Path    string
	Sources []string
}

// ScanResult is the outcome of a pattern scan of one site.
type ScanResult struct {
	Summary model.ScanSummary

	// Files lists suspicious files in walk order.
	Files []FileHits

	// Scripts lists templates with external script sources.
	Scripts []ScriptHit

	// Errors lists files that could not be read.
	Errors []string
}

// PatternScanner runs the pattern-frequency scan.
type PatternScanner struct {
	patterns       []Pattern
	logger         *slog.Logger
	externalScript bool
}

// ScannerOption configures a PatternScanner.
type ScannerOption func(*PatternScanner)

// WithScannerLogger sets the logger.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *PatternScanner) {
		s.logger = logger
	}
}

// WithExternalScripts enables the external script check on template markup.
func WithExternalScripts(enabled bool) ScannerOption {
	return func(s *PatternScanner) {
		s.externalScript = enabled
	}
}

// NewPatternScanner compiles sigs into a scanner.
func NewPatternScanner(sigs []model.PatternSignature, opts ...ScannerOption) (*PatternScanner, error) {
	patterns, err := CompilePatterns(sigs)
	if err != nil {
		return nil, err
	}

	s := &PatternScanner{
		patterns: patterns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LogNames returns the site log names the scanner writes, in order.
func (s *PatternScanner) LogNames() []string {
	names := make([]string, 0, len(s.patterns)+1)
	for _, p := range s.patterns {
		names = append(names, p.Name)
	}
	if s.externalScript {
		names = append(names, ExternalScriptLog)
	}
	return names
}

// ScanPatterns compiles sigs and scans site once. See PatternScanner.Scan.
func ScanPatterns(ctx context.Context, site string, sigs []model.PatternSignature, sink *logsink.Sink) (ScanResult, error) {
	s, err := NewPatternScanner(sigs)
	if err != nil {
		return ScanResult{}, err
	}
	return s.Scan(ctx, site, sink)
}

// Scan counts pattern matches in every candidate file of site and records
// each (pattern, count > 0) pair in the site's log. The logs are finalized
// before returning, also when ctx is cancelled mid-scan, in which case
// ctx.Err() is returned with the partial result.
func (s *PatternScanner) Scan(ctx context.Context, site string, sink *logsink.Sink) (ScanResult, error) {
	var result ScanResult

	siteLog, err := sink.OpenSite(site, s.LogNames())
	if err != nil {
		return result, err
	}
	result.Summary.LogDir = siteLog.Dir()

	files, skipped, walkErr := CandidateFiles(ctx, site)
	for _, entry := range skipped {
		s.logger.Warn("cannot read entry, skipping", "site", site, "entry", entry)
		result.Errors = append(result.Errors, entry)
	}
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		s.scanFile(path, isTemplateMarkup(site, path), siteLog, &result)
	}

	artifacts, finErr := siteLog.Finalize()
	for _, a := range artifacts {
		result.Summary.Artifacts = append(result.Summary.Artifacts, a.Path)
	}
	if finErr != nil {
		result.Errors = append(result.Errors, finErr.Error())
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if walkErr != nil {
		result.Errors = append(result.Errors, walkErr.Error())
	}
	return result, nil
}

func (s *PatternScanner) scanFile(path string, markup bool, siteLog *logsink.SiteLog, result *ScanResult) {
	raw, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("cannot read file, skipping", "path", path, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		return
	}
	result.Summary.FilesScanned++

	text := decodeLenient(raw)
	hits := FileHits{Path: path, Counts: make([]model.PatternCount, 0, len(s.patterns))}
	for _, p := range s.patterns {
		n := p.Count(text)
		hits.Counts = append(hits.Counts, model.PatternCount{Pattern: p.Name, Count: n})
		hits.Total += n
		if n == 0 {
			continue
		}
		if err := siteLog.Append(p.Name, n, path); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}
	if hits.Total > 0 {
		result.Summary.SuspiciousFiles++
		result.Files = append(result.Files, hits)
		s.logger.Debug("suspicious file", "path", path, "hits", hits.Total)
	}

	if !s.externalScript || !markup {
		return
	}
	sources, err := ExternalScripts(strings.NewReader(text))
	if err != nil {
		s.logger.Debug("cannot parse template", "path", path, "error", err)
		return
	}
	if len(sources) == 0 {
		return
	}
	result.Scripts = append(result.Scripts, ScriptHit{Path: path, Sources: sources})
	if err := siteLog.Append(ExternalScriptLog, len(sources), path); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
}

// CandidateFiles returns every regular *.js file below site and every
// regular *.html file that has a directory named template among its
// ancestors below site. Files are returned once each, in walk order.
//
// A site root that is a symlink is resolved, and files are still reported
// below site. Symlinks inside the tree are not followed. Entries that
// cannot be read are skipped and returned in skipped as "path: error".
func CandidateFiles(ctx context.Context, site string) (files, skipped []string, err error) {
	files = make([]string, 0)

	root, err := filepath.EvalSymlinks(site)
	if err != nil {
		return files, nil, err
	}
	underSite := func(path string) string {
		if root == site {
			return path
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			return filepath.Join(site, rel)
		}
		return path
	}

	err = godirwalk.Walk(root, &godirwalk.Options{
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !de.IsRegular() {
				return nil
			}
			path = underSite(path)
			switch filepath.Ext(path) {
			case ".js":
				files = append(files, path)
			case ".html":
				if isTemplateMarkup(site, path) {
					files = append(files, path)
				}
			}
			return nil
		},
		ErrorCallback: func(path string, walkErr error) godirwalk.ErrorAction {
			if ctx.Err() != nil {
				return godirwalk.Halt
			}
			skipped = append(skipped, fmt.Sprintf("%s: %v", underSite(path), walkErr))
			return godirwalk.SkipNode
		},
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return files, skipped, ctxErr
	}
	return files, skipped, err
}

// isTemplateMarkup reports whether path is an .html file with a template
// directory between site and the file.
func isTemplateMarkup(site, path string) bool {
	if filepath.Ext(path) != ".html" {
		return false
	}
	rel, err := filepath.Rel(site, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	return slices.Contains(strings.Split(filepath.ToSlash(rel), "/"), TemplateDirName)
}
