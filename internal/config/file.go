package config

import (
	"github.com/safemac-dev/safemac/internal/model"
)

// File represents the structure of a safemac YAML configuration file.
//
// Every field is optional. Scalars override the defaults when set; a list
// replaces the default list when present in the file, even if it is empty,
// so `excludeDirs: []` really means "exclude nothing".
//
// Example:
//
//	basePaths:
//	  - /www/wwwroot
//	threshold: 2
//	demoOverride: false
//	protection:
//	  excludeDirs: [runtime, upload, public/upload]
//	rules:
//	  extraPatterns:
//	    - name: eval
//	      regex: 'eval\('
type File struct {
	// BasePaths replaces the directories walked by the site scan.
	BasePaths []string `yaml:"basePaths"`

	// SiteList overrides the site list location.
	SiteList string `yaml:"siteList,omitempty"`

	// LogDir overrides the hit log root.
	LogDir string `yaml:"logDir,omitempty"`

	// Threshold overrides the classification threshold.
	Threshold int `yaml:"threshold,omitempty"`

	// DemoOverride toggles the demo directory exception.
	DemoOverride *bool `yaml:"demoOverride,omitempty"`

	// ExternalScripts toggles the template external script check.
	ExternalScripts *bool `yaml:"externalScripts,omitempty"`

	// AttrBackend selects "ioctl" or "chattr".
	AttrBackend string `yaml:"attrBackend,omitempty"`

	// Concurrency caps parallel site locking.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Protection overrides parts of the protection rule.
	Protection *ProtectionFile `yaml:"protection,omitempty"`

	// Rules overrides or extends the detection rules.
	Rules *RulesFile `yaml:"rules,omitempty"`
}

// ProtectionFile mirrors model.ProtectionRule with per-list override semantics.
type ProtectionFile struct {
	LockDirs         []string `yaml:"lockDirs"`
	LockFilePatterns []string `yaml:"lockFilePatterns"`
	ExcludeDirs      []string `yaml:"excludeDirs"`
}

// RulesFile mirrors model.RuleSet. ExtraPatterns are appended to the
// pattern list after any replacement.
type RulesFile struct {
	ExactFiles    []model.ExactFileSignature     `yaml:"exactFiles"`
	Hijacks       []model.ContentHijackSignature `yaml:"hijacks"`
	Patterns      []model.PatternSignature       `yaml:"patterns"`
	ExtraPatterns []model.PatternSignature       `yaml:"extraPatterns"`
}

// Apply merges the file into cfg. Values already set from CLI flags must be
// applied after this call so that flags win.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.BasePaths != nil {
		cfg.BasePaths = append([]string(nil), f.BasePaths...)
	}
	if f.SiteList != "" {
		cfg.SiteListPath = f.SiteList
	}
	if f.LogDir != "" {
		cfg.LogDir = f.LogDir
	}
	if f.Threshold != 0 {
		cfg.Threshold = f.Threshold
	}
	if f.DemoOverride != nil {
		cfg.DemoOverride = *f.DemoOverride
	}
	if f.ExternalScripts != nil {
		cfg.ExternalScripts = *f.ExternalScripts
	}
	if f.AttrBackend != "" {
		cfg.AttrBackend = f.AttrBackend
	}
	if f.Concurrency != 0 {
		cfg.Concurrency = f.Concurrency
	}

	if p := f.Protection; p != nil {
		if p.LockDirs != nil {
			cfg.Protection.LockDirs = append([]string(nil), p.LockDirs...)
		}
		if p.LockFilePatterns != nil {
			cfg.Protection.LockFilePatterns = append([]string(nil), p.LockFilePatterns...)
		}
		if p.ExcludeDirs != nil {
			cfg.Protection.ExcludeDirs = append([]string(nil), p.ExcludeDirs...)
		}
	}

	if r := f.Rules; r != nil {
		if r.ExactFiles != nil {
			cfg.Rules.ExactFiles = append([]model.ExactFileSignature(nil), r.ExactFiles...)
		}
		if r.Hijacks != nil {
			cfg.Rules.Hijacks = append([]model.ContentHijackSignature(nil), r.Hijacks...)
		}
		if r.Patterns != nil {
			cfg.Rules.Patterns = append([]model.PatternSignature(nil), r.Patterns...)
		}
		cfg.Rules.Patterns = append(cfg.Rules.Patterns, r.ExtraPatterns...)
	}
}
