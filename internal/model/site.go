package model

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrSiteNotFound is returned when a site root does not exist or is not a directory.
var ErrSiteNotFound = errors.New("site directory does not exist")

// Site is a directory classified as a MacCMS installation root.
//
// A Site is immutable once classified. Classification is never cached: the
// classifier re-evaluates the filesystem every time it is asked.
type Site struct {
	// RootPath is the absolute path of the installation root.
	RootPath string `json:"root_path"`

	// MatchedFeatures lists the marker directories and files found as
	// immediate children of RootPath, sorted.
	MatchedFeatures []string `json:"matched_features,omitempty"`

	// Score is the number of matched features.
	Score int `json:"score"`

	// Override is true when the site was accepted through an explicit
	// classification exception rather than by score.
	Override bool `json:"override,omitempty"`
}

// Name returns the base name of the site root. It is used to name per-site
// log directories.
func (s Site) Name() string {
	return SiteName(s.RootPath)
}

// SiteName returns the base name of a site path, ignoring trailing separators.
func SiteName(path string) string {
	trimmed := strings.TrimRight(path, string(filepath.Separator))
	if trimmed == "" {
		return string(filepath.Separator)
	}
	return filepath.Base(trimmed)
}
