package logsink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	safelog "github.com/safemac-dev/safemac/internal/log"
	"github.com/safemac-dev/safemac/internal/model"
)

// TimestampLayout names run directories, e.g. 20250131_142501.
const TimestampLayout = "20060102_150405"

// ErrUnknownPattern is returned by Append for a pattern the site log was not opened with.
var ErrUnknownPattern = errors.New("pattern has no log file")

// Sink owns the log directory of one run.
type Sink struct {
	dir string

	mu    sync.Mutex
	names map[string]int
}

// New creates <runRoot>/<timestamp> for a run started at now.
func New(runRoot string, now time.Time) (*Sink, error) {
	dir := filepath.Join(runRoot, now.Format(TimestampLayout))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Sink{dir: dir, names: make(map[string]int)}, nil
}

// Dir returns the run directory.
func (s *Sink) Dir() string {
	return s.dir
}

// OpenSite creates the site directory and one empty log file per pattern.
func (s *Sink) OpenSite(site string, patterns []string) (*SiteLog, error) {
	dir := filepath.Join(s.dir, s.uniqueName(model.SiteName(site)))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create site log directory: %w", err)
	}

	l := &SiteLog{
		dir:   dir,
		files: make(map[string]string, len(patterns)),
	}
	for _, p := range patterns {
		if _, dup := l.files[p]; dup {
			continue
		}
		path := filepath.Join(dir, FileName(p))
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		l.files[p] = path
		l.order = append(l.order, p)
	}
	return l, nil
}

// uniqueName suffixes repeated site base names within one run.
func (s *Sink) uniqueName(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.names[name]++
	if n := s.names[name]; n > 1 {
		return fmt.Sprintf("%s-%d", name, n)
	}
	return name
}

// FileName maps a pattern name to its log file name.
func FileName(pattern string) string {
	r := strings.NewReplacer("/", "_", string(filepath.Separator), "_", "\x00", "_")
	return r.Replace(pattern) + ".txt"
}

// SiteLog holds the log files of one site in one run.
type SiteLog struct {
	dir   string
	files map[string]string
	order []string
}

// Dir returns the site log directory.
func (l *SiteLog) Dir() string {
	return l.dir
}

// Append records count hits of pattern in the file at path.
func (l *SiteLog) Append(pattern string, count int, path string) error {
	logFile, ok := l.files[pattern]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, FormatLine(count, path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FormatLine renders one log line without the trailing newline. Control
// characters in path are escaped so a hostile file name stays on one line.
func FormatLine(count int, path string) string {
	return fmt.Sprintf("%d %s: %s", count, safelog.Escape(filepath.Base(path)), safelog.Escape(path))
}

// Artifact is a log file kept after finalization.
type Artifact struct {
	Pattern string
	Path    string
	Lines   []string
}

// Finalize sorts every log file by leading count and removes empty ones.
// Artifacts are returned in the order the patterns were opened.
func (l *SiteLog) Finalize() ([]Artifact, error) {
	artifacts := make([]Artifact, 0)
	var errs []error

	for _, p := range l.order {
		path := l.files[p]
		lines, err := readLines(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}

		if len(lines) == 0 {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		SortLines(lines)
		if err := writeLines(path, lines); err != nil {
			errs = append(errs, err)
			continue
		}
		artifacts = append(artifacts, Artifact{Pattern: p, Path: path, Lines: lines})
	}

	return artifacts, errors.Join(errs...)
}

// SortLines orders lines by their leading count, highest first. Lines with
// equal counts keep their relative order. A line without a leading number
// sorts as zero.
func SortLines(lines []string) {
	slices.SortStableFunc(lines, func(a, b string) int {
		return leadingCount(b) - leadingCount(a)
	})
}

func leadingCount(line string) int {
	field, _, _ := strings.Cut(line, " ")
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0
	}
	return n
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := sc.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
