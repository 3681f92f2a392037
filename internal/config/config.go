package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/safemac-dev/safemac/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "safemac"

	// SiteListFileName is the name of the site list inside the data directory.
	SiteListFileName = "site.txt"

	// LogDirName is the name of the hit log root inside the data directory.
	LogDirName = "log"

	// DefaultThreshold is the number of marker features a directory needs
	// to be classified as a MacCMS site.
	DefaultThreshold = 2

	// BackendIoctl toggles the immutable flag with FS_IOC_SETFLAGS.
	BackendIoctl = "ioctl"

	// BackendChattr toggles the immutable flag by running chattr.
	BackendChattr = "chattr"
)

// DefaultBasePaths returns the directories searched for sites: the usual
// web roots of BT panel, LNMP, Apache, Nginx and XAMPP installs, then /home.
func DefaultBasePaths() []string {
	return []string{
		"/home/www/wwwroot",
		"/www/wwwroot",
		"/home/wwwroot",
		"/home/www",
		"/var/www/html",
		"/usr/share/nginx/html",
		"/opt/lampp/htdocs",
		"/home",
	}
}

// Config holds all configuration options for safemac.
// This struct is populated from defaults, the config file and CLI flags, in
// that order, and passed through the application rather than kept global.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity; rule lists are the only structured values and they come
// from the model package as they are.
type Config struct {
	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile decides.
	ConfigFilePath string

	// SiteListPath is the newline-delimited list of site roots.
	SiteListPath string

	// LogDir is the root of the per-run hit log directories.
	LogDir string

	// DBDir is the directory of the SQLite history database.
	DBDir string

	// SaveToDB records check and protection runs in the history database.
	SaveToDB bool

	// BasePaths are walked by the site scan.
	BasePaths []string

	// Threshold is the classification score required for a site.
	Threshold int

	// DemoOverride accepts a directory named demo containing application
	// regardless of score.
	DemoOverride bool

	// Protection lists what lock makes immutable and what stays writable.
	Protection model.ProtectionRule

	// Rules are the detection signatures.
	Rules model.RuleSet

	// ExternalScripts enables the external script check on templates.
	ExternalScripts bool

	// AttrBackend selects the immutable attribute mechanism: "ioctl" or "chattr".
	AttrBackend string

	// Concurrency caps the number of sites locked in parallel.
	// Zero means one goroutine per site.
	Concurrency int

	// AssumeYes approves every remediation without asking.
	AssumeYes bool

	// DryRun reports findings without modifying anything.
	DryRun bool

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive; neither means the plain text report.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (threshold, rules, paths).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	dataDir := XDGDataDir()
	return &Config{
		SiteListPath:    filepath.Join(dataDir, SiteListFileName),
		LogDir:          filepath.Join(dataDir, LogDirName),
		DBDir:           dataDir,
		SaveToDB:        true,
		BasePaths:       DefaultBasePaths(),
		Threshold:       DefaultThreshold,
		DemoOverride:    true,
		Protection:      model.DefaultProtectionRule(),
		Rules:           model.DefaultRuleSet(),
		ExternalScripts: true,
		AttrBackend:     BackendIoctl,
	}
}

// XDGDataDir returns the XDG data directory for safemac.
// On Linux: ~/.local/share/safemac (/root/.local/share/safemac for root)
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for safemac.
// On Linux: ~/.config/safemac
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
//
// Design decision: We validate once after flags and the config file are
// merged, before any filesystem is touched, so a typo in a rule never
// leaves a site half locked.
func (c *Config) Validate() error {
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Threshold <= 0 {
		return ErrInvalidThreshold
	}

	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}

	switch c.AttrBackend {
	case BackendIoctl, BackendChattr:
	default:
		return ErrUnknownAttrBackend
	}

	if c.SiteListPath == "" {
		return ErrNoSiteList
	}

	if len(c.Protection.LockDirs) == 0 && len(c.Protection.LockFilePatterns) == 0 {
		return ErrEmptyProtection
	}
	for _, dirs := range [][]string{c.Protection.LockDirs, c.Protection.ExcludeDirs} {
		for _, d := range dirs {
			if !isRelative(d) {
				return ErrInvalidRelPath
			}
		}
	}

	for _, h := range c.Rules.Hijacks {
		if len(h.RelPaths) == 0 || h.CleanReplacement == "" {
			return ErrIncompleteHijackRule
		}
	}

	return nil
}

// isRelative reports whether p is a non-empty relative path that stays
// inside the site root.
func isRelative(p string) bool {
	if p == "" || filepath.IsAbs(p) {
		return false
	}
	clean := filepath.Clean(p)
	return clean != "." && clean != ".." && !hasParentPrefix(clean)
}

func hasParentPrefix(p string) bool {
	return len(p) > 3 && p[:3] == ".."+string(filepath.Separator)
}
