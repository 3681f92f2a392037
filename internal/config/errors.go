package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidThreshold is returned when the classification threshold is not positive.
	ErrInvalidThreshold = errors.New("invalid threshold: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is negative.
	// Use 0 for one goroutine per site.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")

	// ErrUnknownAttrBackend is returned for an attribute backend other than ioctl or chattr.
	ErrUnknownAttrBackend = errors.New("unknown attribute backend: must be ioctl or chattr")

	// ErrNoSiteList is returned when the site list path is empty.
	ErrNoSiteList = errors.New("no site list path configured")

	// ErrEmptyProtection is returned when the protection rule would lock nothing.
	ErrEmptyProtection = errors.New("protection rule has no lock directories or file patterns")

	// ErrInvalidRelPath is returned when a lock or exclude directory is not a
	// relative path inside the site root.
	ErrInvalidRelPath = errors.New("protection directories must be relative paths inside the site root")

	// ErrIncompleteHijackRule is returned when a hijack signature lacks
	// candidate paths or clean replacement content.
	ErrIncompleteHijackRule = errors.New("hijack rule needs paths and cleanReplacement")
)
